package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"recite/audio"
	"recite/encoder"
	"recite/processing"
)

type stubCapture struct {
	mu       sync.Mutex
	cb       audio.DataCallback
	started  bool
	startErr error
}

func (s *stubCapture) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *stubCapture) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *stubCapture) Close() {}

func (s *stubCapture) SetCallback(cb audio.DataCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

func (s *stubCapture) ClearCallback() {
	s.mu.Lock()
	s.cb = nil
	s.mu.Unlock()
}

func (s *stubCapture) DeviceName() string { return "stub" }

func (s *stubCapture) emit(data []byte) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/2))
	}
}

func (s *stubCapture) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

type stubClient struct {
	mu          sync.Mutex
	calls       int
	gotAudio    []byte
	gotDuration float64
	gotRef      string
	res         *processing.Result
	err         error
}

func (c *stubClient) Transcribe(_ context.Context, audio []byte, duration float64, referenceText string) (*processing.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.gotAudio = audio
	c.gotDuration = duration
	c.gotRef = referenceText
	if c.err != nil {
		return nil, c.err
	}
	return c.res, nil
}

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// pcmSeconds builds n seconds of silent S16LE audio.
func pcmSeconds(seconds float64) []byte {
	return make([]byte, int(seconds*encoder.SampleRate)*2)
}

func TestStartCancel(t *testing.T) {
	mic := &stubCapture{}
	client := &stubClient{}
	r := New(mic, client)

	if got := r.State(); got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}
	if r.Sampler().Running() {
		t.Fatal("sampler must not run while idle")
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := r.State(); got != StateRecording {
		t.Fatalf("state = %v, want recording", got)
	}
	if !r.Sampler().Running() {
		t.Fatal("sampler should run while recording")
	}
	if !mic.running() {
		t.Fatal("capture should be started")
	}

	mic.emit(pcmSeconds(0.5))

	if err := r.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state after Cancel = %v, want idle", got)
	}
	if r.Sampler().Running() {
		t.Fatal("sampler must not run after Cancel")
	}
	if mic.running() {
		t.Fatal("capture should be stopped after Cancel")
	}
	if n := client.callCount(); n != 0 {
		t.Fatalf("Cancel must never invoke the client, saw %d calls", n)
	}
}

func TestStartWhileActiveIgnored(t *testing.T) {
	mic := &stubCapture{}
	r := New(mic, &stubClient{})

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := r.sess
	if err := r.Start(); err != nil {
		t.Fatalf("second Start should be a no-op, got %v", err)
	}
	if r.sess != first {
		t.Fatal("second Start must not replace the active session")
	}
	if got := r.State(); got != StateRecording {
		t.Fatalf("state = %v, want recording", got)
	}
	r.Cancel()
}

func TestSubmit(t *testing.T) {
	mic := &stubCapture{}
	client := &stubClient{res: &processing.Result{
		Transcription:        "for god so loved the world",
		CleanedTranscription: "For God so loved the world",
		CleaningUsed:         true,
	}}
	r := New(mic, client)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mic.emit(pcmSeconds(0.5))

	take, err := r.Submit(context.Background(), "For God so loved the world")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if n := client.callCount(); n != 1 {
		t.Fatalf("client calls = %d, want 1", n)
	}
	if client.gotDuration != 0.5 {
		t.Errorf("duration = %v, want 0.5", client.gotDuration)
	}
	if client.gotRef != "For God so loved the world" {
		t.Errorf("referenceText = %q", client.gotRef)
	}
	if len(client.gotAudio) == 0 {
		t.Error("client should receive the encoded audio")
	}
	if take.Result != client.res {
		t.Error("result should pass through unchanged")
	}
	if take.Duration != 0.5 {
		t.Errorf("take duration = %v, want 0.5", take.Duration)
	}
	if take.SessionID == "" {
		t.Error("take should carry its session ID")
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state after Submit = %v, want idle", got)
	}
	if r.Sampler().Running() {
		t.Fatal("sampler must not run after Submit")
	}
}

func TestSubmitEmptyAudio(t *testing.T) {
	mic := &stubCapture{}
	client := &stubClient{}
	r := New(mic, client)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// No audio emitted at all.
	_, err := r.Submit(context.Background(), "ref")
	if !errors.Is(err, processing.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
	if n := client.callCount(); n != 0 {
		t.Fatalf("client calls = %d, want 0", n)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}

func TestSubmitTooShort(t *testing.T) {
	mic := &stubCapture{}
	client := &stubClient{}
	r := New(mic, client)

	r.Start()
	mic.emit(pcmSeconds(0.05)) // under the minimum take length

	_, err := r.Submit(context.Background(), "ref")
	if !errors.Is(err, processing.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
	if n := client.callCount(); n != 0 {
		t.Fatalf("client calls = %d, want 0", n)
	}
}

func TestSubmitWhileIdle(t *testing.T) {
	r := New(&stubCapture{}, &stubClient{})
	if _, err := r.Submit(context.Background(), "ref"); !errors.Is(err, ErrNoActiveRecording) {
		t.Fatalf("err = %v, want ErrNoActiveRecording", err)
	}
}

func TestStartPermissionDenied(t *testing.T) {
	mic := &stubCapture{startErr: errors.New("device busy")}
	r := New(mic, &stubClient{})

	err := r.Start()
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle after failed Start", got)
	}
	if r.Sampler().Running() {
		t.Fatal("sampler must not run after failed Start")
	}
}

func TestClientErrorSurfaced(t *testing.T) {
	mic := &stubCapture{}
	wantErr := &processing.RateLimitError{Used: 5, Limit: 5, ResetsAt: "midnight UTC"}
	client := &stubClient{err: wantErr}
	r := New(mic, client)

	r.Start()
	mic.emit(pcmSeconds(0.5))

	_, err := r.Submit(context.Background(), "ref")
	var rl *processing.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want *RateLimitError", err)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle after failed Submit", got)
	}
	if r.Sampler().Running() {
		t.Fatal("sampler must not run after failed Submit")
	}
}

func TestCancelOutsideRecording(t *testing.T) {
	r := New(&stubCapture{}, &stubClient{})
	if err := r.Cancel(); err != nil {
		t.Fatalf("Cancel while idle: %v", err)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}

func TestStateString(t *testing.T) {
	for _, tt := range []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateRecording, "recording"},
		{StateSubmitting, "submitting"},
		{State(42), "unknown"},
	} {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
