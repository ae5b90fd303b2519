// Package beep plays short audio cues: a tick when recording starts,
// a lower tick when a take is submitted, a double-beep on errors, and a
// soft nudge when the silence watchdog fires.
package beep

import "math"

var disabled bool

// Disable turns all cues off (the -quiet flag).
func Disable() { disabled = true }

const cueSampleRate = 44100

// tone describes one synthesized cue: a sine burst with an exponential
// decay envelope.
type tone struct {
	freq   float64 // Hz
	dur    float64 // seconds
	volume float64 // 0..1
	decay  float64 // envelope steepness
}

var (
	startTone  = tone{freq: 1250, dur: 0.15, volume: 0.5, decay: 55}
	submitTone = tone{freq: 880, dur: 0.18, volume: 0.5, decay: 40}
	errorTone  = tone{freq: 330, dur: 0.08, volume: 0.6, decay: 30}
	nudgeTone  = tone{freq: 660, dur: 0.06, volume: 0.35, decay: 45}
)

// synth renders the tone as mono S16 PCM.
func (t tone) synth() []int16 {
	n := int(cueSampleRate * t.dur)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		at := float64(i) / cueSampleRate
		envelope := math.Exp(-at * t.decay)
		samples[i] = int16(math.Sin(2*math.Pi*t.freq*at) * 32767 * t.volume * envelope)
	}
	return samples
}

// synthDouble renders the tone twice with a short gap between.
func (t tone) synthDouble(gap float64) []int16 {
	burst := t.synth()
	pause := make([]int16, int(cueSampleRate*gap))
	out := make([]int16, 0, len(burst)*2+len(pause))
	out = append(out, burst...)
	out = append(out, pause...)
	out = append(out, burst...)
	return out
}
