//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

var (
	startCue  []int16
	submitCue []int16
	errorCue  []int16
	nudgeCue  []int16
	cueOnce   sync.Once
)

func initCues() {
	startCue = startTone.synth()
	submitCue = submitTone.synth()
	errorCue = errorTone.synthDouble(0.05)
	nudgeCue = nudgeTone.synthDouble(0.09)
}

func playCue(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient()
	if err != nil {
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

func Init() {
	cueOnce.Do(initCues)
}

func PlayStart() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	go playCue(startCue)
}

func PlaySubmit() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	go playCue(submitCue)
}

func PlayError() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	go playCue(errorCue)
}

func PlayNudge() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	go playCue(nudgeCue)
}
