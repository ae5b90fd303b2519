package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"recite/meter"
	"recite/verse"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type SubmitStartMsg struct{}
type MeterMsg struct {
	Level  float64   // latest normalized sample
	Window []float64 // recent samples, oldest first
}
type SilenceMsg struct{ Warned bool }
type TakeResultMsg struct {
	Num      int
	Text     string
	Matched  int
	Total    int
	Accuracy float64
	Copied   bool
}
type ErrorMsg struct{ Text string }
type RateLimitMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateSubmitting
)

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

var (
	styleTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleRef      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	styleRec      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleSubmit   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleWave     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleErr      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleGood     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMid      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleBad      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	styleCopied   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var waveGlyphs = []rune("▁▂▃▄▅▆▇█")

type tuiModel struct {
	state         tuiState
	frame         int
	startedAt     time.Time
	elapsed       float64
	window        []float64
	silenceWarned bool

	refText    string
	appVersion string
	deviceLine string
	rateLimit  string
	errLine    string

	takeNum  int
	lastText string
	matched  int
	total    int
	accuracy float64
	copied   bool

	width, height int
}

func NewTUIProgram(ref verse.Verse, appVersion string) *tea.Program {
	m := tuiModel{refText: ref.Text, appVersion: appVersion}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case " ", "space":
			pushUI(evToggle)
		case "esc":
			pushUI(evCancel)
		}

	case tickMsg:
		m.frame++
		if m.state == tuiStateRecording {
			m.elapsed = time.Since(m.startedAt).Seconds()
		}
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.startedAt = time.Now()
		m.elapsed = 0
		m.window = nil
		m.silenceWarned = false
		m.errLine = ""

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.window = nil
		m.silenceWarned = false

	case SubmitStartMsg:
		m.state = tuiStateSubmitting
		m.silenceWarned = false

	case MeterMsg:
		if m.state == tuiStateRecording {
			m.window = msg.Window
		}

	case SilenceMsg:
		m.silenceWarned = msg.Warned

	case TakeResultMsg:
		m.state = tuiStateIdle
		m.window = nil
		m.takeNum = msg.Num
		m.lastText = msg.Text
		m.matched = msg.Matched
		m.total = msg.Total
		m.accuracy = msg.Accuracy
		m.copied = msg.Copied
		m.errLine = ""

	case ErrorMsg:
		m.state = tuiStateIdle
		m.window = nil
		m.errLine = msg.Text

	case RateLimitMsg:
		m.rateLimit = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder

	b.WriteString(styleTitle.Render("recite "+m.appVersion) + "\n")
	if m.deviceLine != "" {
		b.WriteString(styleDim.Render(m.deviceLine) + "\n")
	}
	b.WriteString("\n")

	for _, line := range wrapText(m.refText, wrapWidth) {
		b.WriteString("  " + styleRef.Render(line) + "\n")
	}
	b.WriteString("\n")

	switch m.state {
	case tuiStateRecording:
		b.WriteString("  " + styleRec.Render(fmt.Sprintf("● REC %.1fs", m.elapsed)) + "\n")
		b.WriteString("  " + styleWave.Render(renderWaveform(m.window)) + "\n")
		if m.silenceWarned {
			b.WriteString("  " + styleWarn.Render("⚠ no voice detected, keep reciting") + "\n")
		}
	case tuiStateSubmitting:
		spinner := spinnerFrames[m.frame%len(spinnerFrames)]
		b.WriteString("  " + styleSubmit.Render(spinner+" transcribing...") + "\n")
		b.WriteString("\n")
	default:
		b.WriteString("  " + styleDim.Render("○ ready") + "\n")
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.lastText != "" {
		b.WriteString("  " + styleDim.Render(fmt.Sprintf("Take #%d", m.takeNum)) + "\n")
		textStyle := accuracyStyle(m.accuracy)
		lines := wrapText(m.lastText, wrapWidth)
		for i, line := range lines {
			b.WriteString("  " + textStyle.Render(line))
			if i == len(lines)-1 && m.copied {
				b.WriteString(" " + styleCopied.Render("[✓ copied]"))
			}
			b.WriteString("\n")
		}
		b.WriteString("  " + textStyle.Render(fmt.Sprintf("accuracy %.0f%% (%d/%d words)", m.accuracy*100, m.matched, m.total)) + "\n")
		b.WriteString("\n")
	}

	if m.rateLimit != "" {
		b.WriteString("  " + styleDim.Render(m.rateLimit) + "\n")
	}
	if m.errLine != "" {
		b.WriteString("  " + styleErr.Render(m.errLine) + "\n")
	}
	b.WriteString("\n")

	help := styleHelpBold.Render("space") + styleHelp.Render(" record/submit   ") +
		styleHelpBold.Render("esc") + styleHelp.Render(" cancel   ") +
		styleHelpBold.Render("ctrl+c") + styleHelp.Render(" quit")
	b.WriteString(help + "\n")

	return b.String()
}

func accuracyStyle(acc float64) lipgloss.Style {
	switch {
	case acc >= 0.9:
		return styleGood
	case acc >= 0.7:
		return styleMid
	default:
		return styleBad
	}
}

// renderWaveform draws the sample window as one bar glyph per sample, a
// fixed meter.Capacity columns wide so the display does not jitter while
// the window fills.
func renderWaveform(window []float64) string {
	var b strings.Builder
	pad := meter.Capacity - len(window)
	for i := 0; i < pad; i++ {
		b.WriteRune(' ')
	}
	for _, v := range window {
		if v <= 0 {
			b.WriteRune(' ')
			continue
		}
		idx := int(v * float64(len(waveGlyphs)))
		if idx >= len(waveGlyphs) {
			idx = len(waveGlyphs) - 1
		}
		b.WriteRune(waveGlyphs[idx])
	}
	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
