// Package recorder owns the capture lifecycle for one practice screen:
// idle → recording → submitting → idle. It is the only component allowed
// to touch the capture device while a take is in progress.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"recite/audio"
	"recite/meter"
	"recite/processing"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateSubmitting:
		return "submitting"
	}
	return "unknown"
}

// ErrPermissionDenied means the capture stream could not be opened; on
// desktop that is the closest analogue to a denied microphone permission.
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrNoActiveRecording is returned by Submit outside the recording state.
var ErrNoActiveRecording = errors.New("no active recording")

// minTakeSeconds guards against accidental taps: anything shorter is
// treated as empty audio before the network is touched.
const minTakeSeconds = 0.1

// Client is the remote transcription dependency.
type Client interface {
	Transcribe(ctx context.Context, audio []byte, duration float64, referenceText string) (*processing.Result, error)
}

// Take is one submitted recording: the processing result plus the local
// stats the diagnostics log wants.
type Take struct {
	SessionID    string
	Duration     float64 // seconds of captured audio
	RawBytes     int
	EncodedBytes int
	EncodeTime   time.Duration
	Result       *processing.Result
}

type Option func(*Recorder)

// WithSampleFunc is called on every metering sample with the normalized
// [0,1] level. Called from the sampler goroutine.
func WithSampleFunc(fn func(v float64)) Option {
	return func(r *Recorder) { r.onSample = fn }
}

// WithSilenceFunc receives silence watchdog events during recording.
func WithSilenceFunc(fn func(ev SilenceEvent)) Option {
	return func(r *Recorder) { r.onSilence = fn }
}

type Recorder struct {
	capture   audio.CaptureDevice
	client    Client
	onSample  func(v float64)
	onSilence func(ev SilenceEvent)

	level   *meter.Meter
	sampler *meter.Sampler

	mu    sync.Mutex
	state State
	sess  *session
}

func New(capture audio.CaptureDevice, client Client, opts ...Option) *Recorder {
	r := &Recorder{
		capture: capture,
		client:  client,
		level:   meter.NewMeter(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sampler = meter.NewSampler(r.level, func(v float64) {
		if r.onSample != nil {
			r.onSample(v)
		}
	})
	return r
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Sampler exposes the metering window for the display layer.
func (r *Recorder) Sampler() *meter.Sampler { return r.sampler }

// Start opens a new take: idle → recording. Starting while recording or
// submitting is ignored. A capture failure leaves the state idle and maps
// to ErrPermissionDenied.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return nil
	}

	sess, err := newSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	r.level.Reset()
	r.sampler.Reset()
	r.capture.SetCallback(func(data []byte, _ uint32) {
		sess.feed(data)
		r.level.Feed(data)
	})

	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		sess.discard()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	r.sess = sess
	r.state = StateRecording
	r.sampler.Start()
	r.startWatchdog(sess)
	return nil
}

// startWatchdog runs the silence monitor until the take's pipeline stops.
func (r *Recorder) startWatchdog(sess *session) {
	sess.watchdogStop = make(chan struct{})
	sess.watchdogDone = make(chan struct{})
	go func() {
		defer close(sess.watchdogDone)
		mon := newSilenceMonitor()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sess.watchdogStop:
				return
			case <-ticker.C:
				if ev := mon.Tick(sess.vad.HasSpeechTick()); ev != SilenceNone && r.onSilence != nil {
					r.onSilence(ev)
				}
			}
		}
	}()
}

// stopPipeline halts watchdog, sampler, and capture, in that order, and
// detaches the callback. Blocks until every part has actually stopped, so
// nothing can tick against a released handle. Caller holds r.mu.
func (r *Recorder) stopPipeline(sess *session) {
	close(sess.watchdogStop)
	<-sess.watchdogDone
	r.sampler.Stop()
	r.capture.Stop()
	r.capture.ClearCallback()
}

// Cancel discards the current take: recording → idle. The remote client is
// never invoked. Cancel outside recording is a no-op.
func (r *Recorder) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil
	}

	r.stopPipeline(r.sess)
	r.sess.discard()
	r.sess = nil
	r.state = StateIdle
	return nil
}

// Submit finishes the take and hands it to the processing client:
// recording → submitting → idle. The state returns to idle on success and
// failure alike; the caller decides whether to re-prompt. The context
// bounds the remote call.
func (r *Recorder) Submit(ctx context.Context, referenceText string) (*Take, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil, ErrNoActiveRecording
	}
	sess := r.sess
	r.stopPipeline(sess)
	r.state = StateSubmitting
	r.mu.Unlock()

	toIdle := func() {
		r.mu.Lock()
		r.sess = nil
		r.state = StateIdle
		r.mu.Unlock()
	}

	data, duration, err := sess.finalize()
	if err != nil {
		toIdle()
		return nil, fmt.Errorf("finalizing audio: %w", err)
	}
	if len(data) == 0 || duration < minTakeSeconds {
		toIdle()
		return nil, processing.ErrEmptyAudio
	}

	result, err := r.client.Transcribe(ctx, data, duration, referenceText)
	toIdle()
	if err != nil {
		return nil, err
	}

	return &Take{
		SessionID:    sess.id,
		Duration:     duration,
		RawBytes:     sess.rawBytes(),
		EncodedBytes: len(data),
		EncodeTime:   sess.encodeTime(),
		Result:       result,
	}, nil
}

// Close tears the recorder down, discarding any in-flight take.
func (r *Recorder) Close() {
	r.Cancel()
}
