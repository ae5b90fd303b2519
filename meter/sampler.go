package meter

import (
	"sync"
	"time"
)

const (
	// Interval is the fixed polling period of the sampler.
	Interval = 50 * time.Millisecond
	// Capacity bounds the sample window; the oldest sample is evicted first.
	Capacity = 40
)

// Source is anything that can report a current loudness in dBFS.
type Source interface {
	LevelDB() float64
}

// Sampler polls a Source at a fixed interval, normalizes each reading into
// [0,1], and keeps the most recent Capacity values. The display layer reads
// the window; onSample is a data-available nudge, not a transport.
type Sampler struct {
	src      Source
	interval time.Duration
	onSample func(v float64)

	mu    sync.Mutex
	ring  [Capacity]float64
	count int // total samples ever appended
	stop  chan struct{}
	done  chan struct{}
}

// NewSampler polls src every Interval. onSample may be nil.
func NewSampler(src Source, onSample func(v float64)) *Sampler {
	return &Sampler{src: src, interval: Interval, onSample: onSample}
}

// Start begins polling. Starting an already-running sampler is a no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				v := Normalize(s.src.LevelDB())
				s.push(v)
				if s.onSample != nil {
					s.onSample(v)
				}
			}
		}
	}()
}

// Stop halts polling and blocks until the polling goroutine has exited; no
// tick runs after Stop returns. Idempotent.
func (s *Sampler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the polling goroutine is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Sampler) push(v float64) {
	s.mu.Lock()
	s.ring[s.count%Capacity] = v
	s.count++
	s.mu.Unlock()
}

// Window returns up to the most recent Capacity samples, oldest first.
func (s *Sampler) Window() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.count
	if n > Capacity {
		n = Capacity
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = s.ring[(s.count-n+i)%Capacity]
	}
	return out
}

// Reset discards the sample window. Called when a new take starts.
func (s *Sampler) Reset() {
	s.mu.Lock()
	s.count = 0
	s.mu.Unlock()
}
