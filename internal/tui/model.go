package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"document-qa/internal/models"
	"document-qa/internal/session"
)

// ChatPort is the TUI-facing subset of a session.
type ChatPort interface {
	Ask(ctx context.Context, query string) (models.Answer, error)
	History() []models.ChatTurn
	Reset()
	SetRange1Based(start, end int) error
	SetFullRange()
	Info() (session.Info, error)
}

const helpText = "Enter to ask · /range A B · /full · /clear · Ctrl+C to quit"

type answerMsg struct {
	answer models.Answer
	err    error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	chat     ChatPort
	ctx      context.Context
	input    textinput.Model
	viewport viewport.Model
	status   string
	busy     bool
	ready    bool
}

func New(ctx context.Context, chat ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the document"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{chat: chat, ctx: ctx, input: ti, viewport: vp, status: helpText}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, scope, status, input box
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else if len(msg.answer.CitedPages) > 0 {
			m.status = "Answered from page(s) " + joinPages(msg.answer.CitedPages)
		} else {
			m.status = helpText
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			if strings.HasPrefix(q, "/") {
				return m.command(q)
			}
			m.busy = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	chat, ctx := m.chat, m.ctx
	return func() tea.Msg {
		ans, err := chat.Ask(ctx, q)
		return answerMsg{answer: ans, err: err}
	}
}

func (m Model) command(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		m.chat.Reset()
		m.status = "Chat cleared."
	case "/full":
		m.chat.SetFullRange()
		m.status = "Using the full document."
	case "/range":
		if len(fields) != 3 {
			m.status = "Usage: /range START END"
			break
		}
		start, err1 := strconv.Atoi(fields[1])
		end, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			m.status = "Usage: /range START END"
			break
		}
		if err := m.chat.SetRange1Based(start, end); err != nil {
			m.status = "Error: " + err.Error()
			break
		}
		m.status = fmt.Sprintf("Using pages %d to %d.", start, end)
	default:
		m.status = "Unknown command " + fields[0]
	}
	m.refresh()
	return m, nil
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.chat.History(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A")
	scope := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.scope())
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + scope + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) scope() string {
	info, err := m.chat.Info()
	if err != nil {
		return "No document loaded"
	}
	if info.FullRange {
		return fmt.Sprintf("%s · entire document (%d pages)", info.Filename, info.Pages)
	}
	return fmt.Sprintf("%s · %s", info.Filename, info.Range.String())
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func renderHistory(turns []models.ChatTurn, width int) string {
	if len(turns) == 0 {
		return "No messages yet."
	}
	body := lipgloss.NewStyle().Width(max(10, width-4))
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t.Role == models.RoleUser {
			b.WriteString(userStyle.Render("You"))
		} else {
			b.WriteString(assistantStyle.Render("Assistant"))
		}
		b.WriteString("\n")
		b.WriteString(body.Render(t.Content))
	}
	return b.String()
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
