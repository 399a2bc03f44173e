package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/petems/audioscope/internal/config"
	"github.com/petems/audioscope/internal/spectrum"
)

// SpectrumMsg carries a freshly published spectrum
type SpectrumMsg []spectrum.Point

// StatusMsg updates the header
type StatusMsg struct {
	Device string
	Format string
	State  string
}

type frameMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	peakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model renders the spectrum as a bar chart. Incoming spectra are held
// until the next frame so redraws stay at the configured rate.
type Model struct {
	device string
	format string
	state  string

	pending []spectrum.Point
	shown   []spectrum.Point
	frames  uint64

	frameRate float64
	maxPower  float64
	decibels  bool

	copy    func(string) error
	message string

	width  int
	height int
}

func NewModel(cfg config.UIConfig, device string) Model {
	frameRate := cfg.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}
	maxPower := cfg.MaxPower
	if maxPower <= 0 {
		maxPower = 1_000_000
	}

	return Model{
		device:    device,
		state:     "idle",
		frameRate: frameRate,
		maxPower:  maxPower,
		decibels:  cfg.Decibels,
		copy:      clipboard.WriteAll,
	}
}

func (m Model) Init() tea.Cmd {
	return m.nextFrame()
}

func (m Model) nextFrame() tea.Cmd {
	interval := time.Duration(float64(time.Second) / m.frameRate)
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case SpectrumMsg:
		m.pending = msg
	case StatusMsg:
		m.applyStatus(msg)
	case frameMsg:
		if m.pending != nil {
			m.shown = m.pending
			m.pending = nil
			m.frames++
		}
		return m, m.nextFrame()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "l":
		m.decibels = !m.decibels
	case "c":
		if len(m.shown) == 0 {
			m.message = "nothing to copy yet"
			break
		}
		if err := m.copy(spectrum.CSV(m.shown)); err != nil {
			m.message = "copy failed: " + err.Error()
		} else {
			m.message = fmt.Sprintf("copied %d points", len(m.shown))
		}
	}
	return m, nil
}

func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Device != "" {
		m.device = msg.Device
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.State != "" {
		m.state = msg.State
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("audioscope"))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render("Device: "))
	b.WriteString(valueStyle.Render(orDefault(m.device, "default")))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render("Format: "))
	b.WriteString(valueStyle.Render(orDefault(m.format, "-")))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render("State: "))
	b.WriteString(valueStyle.Render(m.state))
	b.WriteString("\n\n")

	rows := m.height - 6
	if rows < 4 {
		rows = 4
	}

	if len(m.shown) == 0 {
		b.WriteString(valueStyle.Render("  Waiting for audio..."))
		b.WriteString(strings.Repeat("\n", rows))
	} else {
		b.WriteString(m.renderBars(rows))
		peak := spectrum.Peak(m.shown)
		b.WriteString(peakStyle.Render(fmt.Sprintf("Peak %.0f Hz  power %.3g", peak.Frequency, peak.Power)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	scale := "linear"
	if m.decibels {
		scale = "dB"
	}
	help := fmt.Sprintf("l: scale (%s)  c: copy CSV  q: quit", scale)
	if m.message != "" {
		help += "  | " + m.message
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

// renderBars draws one column per point, tallest rows first
func (m Model) renderBars(rows int) string {
	levels := make([]float64, len(m.shown))
	for i, p := range m.shown {
		levels[i] = m.level(p.Power)
	}

	var b strings.Builder
	for r := rows; r > 0; r-- {
		threshold := float64(r) / float64(rows)
		var line strings.Builder
		for _, lvl := range levels {
			if lvl >= threshold {
				line.WriteString("█")
			} else {
				line.WriteByte(' ')
			}
		}
		b.WriteString(barStyle.Render(line.String()))
		b.WriteByte('\n')
	}

	first := m.shown[0].Frequency
	last := m.shown[len(m.shown)-1].Frequency
	axis := fmt.Sprintf("%-*s%s", max(len(levels)-6, 0), fmt.Sprintf("%.0fHz", first), fmt.Sprintf("%.0fHz", last))
	b.WriteString(helpStyle.Render(axis))
	b.WriteByte('\n')
	return b.String()
}

// level maps power onto 0..1 of the fixed axis
func (m Model) level(power float64) float64 {
	var lvl float64
	if m.decibels {
		if power <= 1 {
			return 0
		}
		lvl = math.Log10(power) / math.Log10(m.maxPower)
	} else {
		lvl = power / m.maxPower
	}
	return math.Max(0, math.Min(1, lvl))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
