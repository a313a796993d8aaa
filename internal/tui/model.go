// Package tui is an interactive question console over the retrieval core.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragtutor/internal/domain"
)

// QAPort is the TUI-facing subset of the orchestrator.
type QAPort interface {
	AnswerQuestion(ctx context.Context, question string) (domain.Answer, error)
}

// answerMsg carries a finished question round trip back into the model.
type answerMsg struct {
	answer domain.Answer
	err    error
}

// Model is the Bubble Tea model for the question console.
type Model struct {
	service  QAPort
	input    textinput.Model
	viewport viewport.Model
	status   string
	waiting  bool
	ready    bool
}

// New creates a new console model.
func New(service QAPort) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask a question about the document and press Enter"
	ti.Focus()
	ti.CharLimit = 1000
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, status: "Ready. Ask away."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = "Thinking..."
				return m, askCmd(m.service, q)
			}
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Answered %q", msg.answer.Question)
		m.viewport.SetContent(renderAnswer(msg.answer))
		m.viewport.GotoTop()
		m.input.SetValue("")
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("ragtutor")
	answer := answerBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + answer + "\n" + input + "\n" + status
}

func askCmd(service QAPort, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := service.AnswerQuestion(context.Background(), question)
		return answerMsg{answer: answer, err: err}
	}
}

func renderAnswer(a domain.Answer) string {
	var b strings.Builder
	b.WriteString(a.Answer)
	if len(a.SupportingChunks) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sourcesStyle.Render("Sources"))
		for _, c := range a.SupportingChunks {
			b.WriteString(fmt.Sprintf("\n  %s  similarity=%.3f\n  %s", c.ID, c.Similarity, c.Text))
		}
	}
	if a.Image != nil {
		b.WriteString("\n\n")
		b.WriteString(sourcesStyle.Render("Illustration"))
		b.WriteString(fmt.Sprintf("\n  %s (%s)", a.Image.Filename, a.Image.Title))
	}
	return b.String()
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourcesStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
