//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	startCue  []byte
	submitCue []byte
	errorCue  []byte
	nudgeCue  []byte
	cueOnce   sync.Once

	// Playback cursor, read from the device callback.
	cueBytes atomic.Pointer[[]byte]
	cuePos   atomic.Uint32
	cueMu    sync.Mutex
)

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = cueSampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: cueCallback,
	}

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, callbacks)
	return err
}

func initCues() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	startCue = toBytes(startTone.synth())
	submitCue = toBytes(submitTone.synth())
	errorCue = toBytes(errorTone.synthDouble(0.05))
	nudgeCue = toBytes(nudgeTone.synthDouble(0.09))

	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
		return
	}
}

func cueCallback(pOutput, _ []byte, frameCount uint32) {
	samples := cueBytes.Load()
	if samples == nil || len(*samples) == 0 {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	pos := cuePos.Load()
	total := uint32(len(*samples))
	want := frameCount * 2
	remaining := total - pos

	if remaining == 0 {
		cueBytes.Store(nil)
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	if want > remaining {
		want = remaining
	}

	copy(pOutput[:want], (*samples)[pos:pos+want])
	cuePos.Store(pos + want)

	for i := want; i < frameCount*2; i++ {
		pOutput[i] = 0
	}
}

func playCue(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}

	cueMu.Lock()
	defer cueMu.Unlock()

	if device == nil {
		return
	}

	// Stop first so the cursor reset is not raced by a running callback.
	device.Stop()

	cuePos.Store(0)
	cueBytes.Store(&samples)

	if err := device.Start(); err != nil {
		// Recreate the device; handles macOS sleep/wake invalidation.
		device.Uninit()
		if err := initDevice(); err != nil {
			cueBytes.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			cueBytes.Store(nil)
			return
		}
	}
}

func Init() {
	cueOnce.Do(initCues)
}

func PlayStart() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	playCue(startCue)
}

func PlaySubmit() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	playCue(submitCue)
}

func PlayError() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	playCue(errorCue)
}

func PlayNudge() {
	if disabled {
		return
	}
	cueOnce.Do(initCues)
	playCue(nudgeCue)
}
