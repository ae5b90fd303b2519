// Package meter turns raw capture chunks into a bounded window of
// normalized loudness samples for the level display.
package meter

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

const (
	// FloorDB/CeilingDB bound the linear dB→[0,1] display mapping.
	FloorDB   = -60.0
	CeilingDB = 0.0
)

// Meter tracks the current loudness of a capture stream. The capture
// callback feeds it PCM chunks; readers poll LevelDB from another
// goroutine, so the level is kept atomically.
type Meter struct {
	level atomic.Uint64 // Float64bits of dBFS
}

func NewMeter() *Meter {
	m := &Meter{}
	m.Reset()
	return m
}

// Feed computes the RMS loudness of an S16LE chunk and stores it as dBFS.
func (m *Meter) Feed(pcm []byte) {
	if len(pcm) < 2 {
		return
	}
	var sumSquares float64
	n := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
		n++
	}
	rms := math.Sqrt(sumSquares / float64(n))
	m.level.Store(math.Float64bits(DBFS(rms)))
}

// LevelDB returns the loudness of the most recent chunk in dBFS.
func (m *Meter) LevelDB() float64 {
	return math.Float64frombits(m.level.Load())
}

func (m *Meter) Reset() {
	m.level.Store(math.Float64bits(math.Inf(-1)))
}

// DBFS converts a [0,1] RMS amplitude to decibels relative to full scale.
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// Normalize maps dBFS into [0,1] linearly between FloorDB and CeilingDB,
// clamped at both ends.
func Normalize(db float64) float64 {
	if db <= FloorDB {
		return 0
	}
	if db >= CeilingDB {
		return 1
	}
	return (db - FloorDB) / (CeilingDB - FloorDB)
}
