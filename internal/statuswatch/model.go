package statuswatch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"underwriting-backend/internal/status"
)

const maxEvents = 200

// Terminal steps of one underwrite run.
const (
	stepComplete = "complete"
	stepError    = "error"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	stepStyle   = lipgloss.NewStyle().Width(18)
	stateStyles = map[status.State]lipgloss.Style{
		status.Processing: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB300")).Width(11),
		status.Complete:   lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Width(11),
		status.Success:    lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true).Width(11),
		status.Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935")).Bold(true).Width(11),
	}
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935"))
)

type eventMsg status.Event

type streamEndedMsg struct{ err error }

// Model renders the event log. With a request ID it stops after that run's
// terminal event; without one it follows every run until quit.
type Model struct {
	requestID string
	events    <-chan status.Event
	ended     <-chan error
	spinner   spinner.Model
	log       []status.Event
	done      bool
	err       error
}

// New builds a model fed by events; ended delivers Follow's result.
func New(requestID string, events <-chan status.Event, ended <-chan error) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	return Model{requestID: requestID, events: events, ended: ended, spinner: s}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait())
}

func (m Model) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg(ev)
		case err := <-m.ended:
			return streamEndedMsg{err: err}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case eventMsg:
		ev := status.Event(msg)
		m.log = append(m.log, ev)
		if len(m.log) > maxEvents {
			m.log = m.log[len(m.log)-maxEvents:]
		}
		if m.requestID != "" && ev.RequestID == m.requestID && (ev.Step == stepComplete || ev.Step == stepError) {
			m.done = true
			return m, tea.Quit
		}
		return m, m.wait()
	case streamEndedMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	target := "all runs"
	if m.requestID != "" {
		target = "request " + m.requestID
	}
	b.WriteString(titleStyle.Render("Underwriting status") + " " + hintStyle.Render(target) + "\n\n")

	for _, ev := range m.log {
		b.WriteString(renderEvent(ev, m.requestID == ""))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("stream error: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString(hintStyle.Render("done") + "\n")
	default:
		b.WriteString(m.spinner.View() + " " + hintStyle.Render("waiting for events (q to quit)") + "\n")
	}
	return b.String()
}

// Err reports why the stream ended, if it failed.
func (m Model) Err() error { return m.err }

func renderEvent(ev status.Event, withRequest bool) string {
	style, ok := stateStyles[ev.Status]
	if !ok {
		style = lipgloss.NewStyle().Width(11)
	}
	line := timeStyle.Render(ev.Timestamp.Local().Format("15:04:05")) + " " +
		stepStyle.Render(ev.Step) + " " +
		style.Render(string(ev.Status))
	if withRequest {
		line += " " + hintStyle.Render(fmt.Sprintf("[%s]", ev.RequestID))
	}
	if ev.Details != "" {
		line += " " + ev.Details
	}
	return line
}
