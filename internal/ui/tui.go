package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/petems/audioscope/internal/spectrum"
)

// Sender is the part of *tea.Program the publisher needs
type Sender interface {
	Send(msg tea.Msg)
}

// Publisher forwards driver output into a running program. It is safe
// to call from the driver goroutine.
type Publisher struct {
	program Sender
}

func NewPublisher(program Sender) *Publisher {
	return &Publisher{program: program}
}

func (p *Publisher) Publish(points []spectrum.Point) {
	p.program.Send(SpectrumMsg(points))
}

func (p *Publisher) SetIdle() {
	p.program.Send(StatusMsg{State: "idle"})
}

func (p *Publisher) SetReady() {
	p.program.Send(StatusMsg{State: "ready"})
}

func (p *Publisher) SetError() {
	p.program.Send(StatusMsg{State: "error"})
}

// SetDevice shows the capture endpoint's friendly name in the header
func (p *Publisher) SetDevice(name string) {
	p.program.Send(StatusMsg{Device: name})
}

// SetFormat shows the negotiated stream format in the header
func (p *Publisher) SetFormat(format string) {
	p.program.Send(StatusMsg{Format: format})
}

// NewProgram creates the full-screen program for model
func NewProgram(model Model) *tea.Program {
	return tea.NewProgram(model, tea.WithAltScreen())
}
