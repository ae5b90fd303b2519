package audio

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays PCM from a WAV file instead of opening a microphone.
// Used by replay mode and tests.
type FakeContext struct {
	pcm        []byte
	sampleRate uint32
	realtime   bool
}

// NewFakeContext loads wavPath and strips the header. With realtime set the
// capture paces chunks at the wall-clock rate of the audio; otherwise the
// whole file is delivered on Start and silence follows.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// NewFakePCMContext wraps raw PCM directly, for tests that synthesize audio.
func NewFakePCMContext(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{
		pcm:        f.pcm,
		sampleRate: config.SampleRate,
		realtime:   f.realtime,
		drained:    make(chan struct{}),
	}, nil
}

type FakeCapture struct {
	pcm        []byte
	sampleRate uint32
	realtime   bool

	callback atomic.Pointer[DataCallback]

	mu       sync.Mutex
	stopCh   chan struct{}
	feedDone chan struct{}
	drained  chan struct{} // replaced on Stop for the next take
}

// Drained closes once all file audio has been delivered; only silence
// follows. Replay mode uses it to know when to submit. Stop replaces the
// channel for the next take, so the read must hold the lock.
func (f *FakeCapture) Drained() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drained
}

func (f *FakeCapture) SetCallback(cb DataCallback) { f.callback.Store(&cb) }
func (f *FakeCapture) ClearCallback()              { f.callback.Store(nil) }
func (f *FakeCapture) DeviceName() string          { return "fake" }

func (f *FakeCapture) emit(data []byte) {
	cb := f.callback.Load()
	if cb == nil {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	(*cb)(chunk, uint32(len(chunk)/fakeBytesPerFrame))
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stopCh, feedDone, drained := f.stopCh, f.feedDone, f.drained
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	var interval time.Duration
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.sampleRate)
	} else {
		interval = time.Millisecond
	}

	go func() {
		defer close(feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		drainedFired := false

		for {
			select {
			case <-stopCh:
				return
			default:
			}

			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				f.emit(f.pcm[pos:end])
				pos = end
			} else {
				if !drainedFired {
					drainedFired = true
					close(drained)
				}
				f.emit(silence)
			}

			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-feedDone
	f.mu.Lock()
	f.stopCh = nil
	select {
	case <-f.drained:
		f.drained = make(chan struct{}) // reset for the next take
	default:
	}
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {
	f.Stop()
}
