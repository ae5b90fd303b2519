package recorder

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"

	"recite/encoder"
)

// session owns everything belonging to one take: the FLAC pipeline, the
// VAD state, and the sample backlog. Created on Start, destroyed on
// Cancel/Submit. Exactly one session exists per Recorder at a time.
type session struct {
	id         string
	startedAt  time.Time
	enc        encoder.Encoder
	vad        *vadProcessor
	blockChan  chan []int16
	encodeDone chan struct{}

	watchdogStop chan struct{}
	watchdogDone chan struct{}

	mu        sync.Mutex
	sampleBuf []int16
	closed    bool
}

func newSession() (*session, error) {
	enc, err := encoder.NewFlac()
	if err != nil {
		return nil, err
	}
	vp, err := newVADProcessor()
	if err != nil {
		return nil, err
	}

	s := &session{
		id:         uuid.NewString(),
		startedAt:  time.Now(),
		enc:        enc,
		vad:        vp,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(s.encodeDone)
		for block := range s.blockChan {
			start := time.Now()
			s.enc.EncodeBlock(block)
			s.enc.AddEncodeTime(time.Since(start))
		}
	}()

	return s, nil
}

// feed accepts a PCM chunk from the capture callback. The capture is
// stopped (and its callback drained) before finalize/discard run, so no
// feed can race the channel close.
func (s *session) feed(pcm []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s.sampleBuf = append(s.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var blocks [][]int16
	for len(s.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, s.sampleBuf[:encoder.BlockSize])
		s.sampleBuf = s.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	s.mu.Unlock()

	for _, block := range blocks {
		s.blockChan <- block
	}

	s.vad.Process(pcm)
}

// finalize flushes and closes the encode pipeline and returns the finished
// audio with its duration in seconds.
func (s *session) finalize() (data []byte, duration float64, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, 0, nil
	}
	s.closed = true
	var partial []int16
	if len(s.sampleBuf) > 0 {
		partial = make([]int16, len(s.sampleBuf))
		copy(partial, s.sampleBuf)
		s.sampleBuf = nil
	}
	s.mu.Unlock()

	if len(partial) > 0 {
		s.blockChan <- partial
	}
	close(s.blockChan)
	<-s.encodeDone

	if err := s.enc.Close(); err != nil {
		return nil, 0, err
	}
	duration = float64(s.enc.TotalFrames()) / float64(encoder.SampleRate)
	return s.enc.Bytes(), duration, nil
}

// discard drops the take without producing audio.
func (s *session) discard() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.sampleBuf = nil
	s.mu.Unlock()

	close(s.blockChan)
	<-s.encodeDone
	s.enc.Close()
}

func (s *session) rawBytes() int {
	return int(s.enc.TotalFrames()) * 2
}

func (s *session) encodeTime() time.Duration {
	return s.enc.EncodeTime()
}
