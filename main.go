package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"

	"recite/audio"
	"recite/beep"
	"recite/encoder"
	"recite/log"
	"recite/processing"
	"recite/recorder"
	"recite/shutdown"
	"recite/verse"
)

var version = "dev"

const defaultAPIURL = "https://api.recite.app/v1/transcriptions"

// uiEvent is a keypress forwarded from the TUI to the control loop.
type uiEvent int

const (
	evToggle uiEvent = iota // space: start recording, or submit the take
	evCancel                // esc: discard the recording or abort the upload
)

var uiEvents = make(chan uiEvent, 4)

func pushUI(ev uiEvent) {
	select {
	case uiEvents <- ev:
	default:
	}
}

var (
	takesMu   sync.Mutex
	takeCount int
)

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		takesMu.Lock()
		n := takeCount
		takesMu.Unlock()
		if n > 0 {
			log.SessionEnd(n)
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(name string) string {
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix
}

func main() {
	run()
}

func run() {
	refFlag := flag.String("ref", "", "Reference text to recite (inline)")
	refFileFlag := flag.String("reffile", "", "Path to a file holding the reference text")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	urlFlag := flag.String("url", "", "Transcription service URL (default: RECITE_API_URL or built-in)")
	copyFlag := flag.Bool("copy", true, "Copy the transcription to the clipboard after each take")
	quietFlag := flag.Bool("quiet", false, "Disable audio cues")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	inputFlag := flag.String("input", "", "Replay a WAV file instead of recording from the microphone")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("recite %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	// .env is optional; real env vars win.
	godotenv.Load()

	token := os.Getenv("RECITE_API_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: RECITE_API_TOKEN is not set (put it in the environment or a .env file)")
		os.Exit(1)
	}

	apiURL := *urlFlag
	if apiURL == "" {
		apiURL = os.Getenv("RECITE_API_URL")
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	var ref verse.Verse
	switch {
	case *refFileFlag != "":
		ref, err = verse.LoadFile(*refFileFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *refFlag != "":
		ref = verse.Verse{Text: strings.TrimSpace(*refFlag)}
	default:
		fmt.Fprintln(os.Stderr, "Error: provide the text to recite with -ref or -reffile")
		os.Exit(1)
	}

	if *quietFlag {
		beep.Disable()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	var ctx audio.Context
	if *inputFlag != "" {
		ctx, err = audio.NewFakeContext(*inputFlag, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			os.Exit(1)
		}
	} else {
		ctx, err = audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Falling back to default device")
			selectedDevice = nil
		}
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	capture, err := ctx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()

	log.SessionStart(apiURL, capture.DeviceName())

	client := processing.NewClient(apiURL, processing.StaticToken(token))
	go client.Warm()

	var rec *recorder.Recorder
	rec = recorder.New(capture, client,
		recorder.WithSampleFunc(func(v float64) {
			tuiSend(MeterMsg{Level: v, Window: rec.Sampler().Window()})
		}),
		recorder.WithSilenceFunc(func(ev recorder.SilenceEvent) {
			switch ev {
			case recorder.SilenceWarn:
				log.Info("silence_warning")
				tuiSend(SilenceMsg{Warned: true})
				beep.PlayNudge()
			case recorder.SilenceRepeat:
				log.Info("silence_warning_repeat")
				tuiSend(SilenceMsg{Warned: true})
				beep.PlayNudge()
			case recorder.SilenceWarnClear:
				tuiSend(SilenceMsg{Warned: false})
			}
		}),
	)
	defer rec.Close()

	// Replay mode: once the file audio is exhausted, submit the take as if
	// the user had pressed space.
	if fake, ok := capture.(*audio.FakeCapture); ok {
		go func() {
			for {
				<-fake.Drained()
				if rec.State() == recorder.StateRecording {
					pushUI(evToggle)
				}
				time.Sleep(100 * time.Millisecond)
			}
		}()
	}

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(ref, version)
	tuiMu.Unlock()
	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
			os.Exit(1)
		}
		gracefulShutdown()
	}()
	<-tuiReady

	tuiSend(DeviceLineMsg{Text: deviceLineText(capture.DeviceName())})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	go beep.Init()

	var submitMu sync.Mutex
	var submitCancel context.CancelFunc

	startRecording := func() {
		if err := rec.Start(); err != nil {
			log.Errorf("recording start error: %v", err)
			tuiSend(ErrorMsg{Text: err.Error()})
			beep.PlayError()
			return
		}
		log.Info("recording_start: " + capture.DeviceName())
		beep.PlayStart()
		tuiSend(RecordingStartMsg{})
	}

	submitTake := func() {
		submitCtx, cancel := context.WithCancel(context.Background())
		submitMu.Lock()
		submitCancel = cancel
		submitMu.Unlock()

		log.Info("recording_submit")
		beep.PlaySubmit()
		tuiSend(SubmitStartMsg{})

		go func() {
			defer cancel()
			take, err := rec.Submit(submitCtx, ref.Text)
			if err != nil {
				reportSubmitError(err)
				return
			}
			finishTake(take, ref, *copyFlag)
		}()
	}

	cancelAction := func() {
		switch rec.State() {
		case recorder.StateRecording:
			if err := rec.Cancel(); err == nil {
				log.Info("recording_canceled")
				tuiSend(RecordingStopMsg{})
			}
		case recorder.StateSubmitting:
			submitMu.Lock()
			if submitCancel != nil {
				submitCancel()
			}
			submitMu.Unlock()
		}
	}

	for ev := range uiEvents {
		switch ev {
		case evToggle:
			switch rec.State() {
			case recorder.StateIdle:
				startRecording()
			case recorder.StateRecording:
				submitTake()
			}
		case evCancel:
			cancelAction()
		}
	}
}

func reportSubmitError(err error) {
	var rl *processing.RateLimitError
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("submit_canceled")
		tuiSend(ErrorMsg{Text: "submission canceled"})
		return
	case errors.Is(err, processing.ErrEmptyAudio):
		log.Info("empty_take")
		tuiSend(ErrorMsg{Text: "no audio captured, try again"})
	case errors.Is(err, processing.ErrAlreadyInProgress):
		log.Warn("submit_in_progress")
		tuiSend(ErrorMsg{Text: err.Error()})
	case errors.As(err, &rl):
		log.RateLimit(rl.Used, rl.Limit, rl.ResetsAt)
		tuiSend(RateLimitMsg{Text: fmt.Sprintf("transcriptions: %d/%d used, resets %s", rl.Used, rl.Limit, rl.ResetsAt)})
		tuiSend(ErrorMsg{Text: err.Error()})
	default:
		log.Errorf("submit error: %v", err)
		tuiSend(ErrorMsg{Text: err.Error()})
	}
	beep.PlayError()
}

func finishTake(take *recorder.Take, ref verse.Verse, copyText bool) {
	res := take.Result
	text := res.Transcription
	if res.CleaningUsed && res.CleanedTranscription != "" {
		text = res.CleanedTranscription
	}

	score := verse.Grade(ref.Text, text)
	accuracy := score.Accuracy()

	copied := false
	if copyText && text != "" {
		if err := clipboard.WriteAll(text); err != nil {
			log.Warnf("clipboard copy failed: %v", err)
		} else {
			copied = true
		}
	}

	takesMu.Lock()
	takeCount++
	n := takeCount
	takesMu.Unlock()

	log.Practice(text, accuracy)
	if m := res.Metrics; m != nil {
		compressionPct := 0.0
		if take.RawBytes > 0 {
			compressionPct = 100 * (1 - float64(take.EncodedBytes)/float64(take.RawBytes))
		}
		log.Upload(take.SessionID, log.UploadMetrics{
			AudioLengthS:     take.Duration,
			RawSizeKB:        float64(take.RawBytes) / 1024,
			CompressedSizeKB: float64(take.EncodedBytes) / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(take.EncodeTime) / float64(time.Millisecond),
			DNSTimeMs:        float64(m.DNS) / float64(time.Millisecond),
			TLSTimeMs:        float64(m.TLS) / float64(time.Millisecond),
			TTFBMs:           float64(m.TTFB) / float64(time.Millisecond),
			TotalTimeMs:      float64(m.Total) / float64(time.Millisecond),
		}, m.ConnReused, m.TLSProtocol)
	}

	tuiSend(TakeResultMsg{
		Num:      n,
		Text:     text,
		Matched:  score.Matched,
		Total:    score.Total,
		Accuracy: accuracy,
		Copied:   copied,
	})
}
