// Package tui is the terminal chat client for a local FAQ service.
package tui

import (
	"context"
	"strings"
	"time"

	"faqbot/internal/faq"
	"faqbot/internal/index"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Answerer is the part of faq.Service the TUI uses.
type Answerer interface {
	Answer(ctx context.Context, q string) (faq.Response, error)
}

// IndexInfo exposes the live snapshot for the status bar. index.Manager
// implements it.
type IndexInfo interface {
	Current() *index.Snapshot
}

// ModelConfig holds the configuration for creating a new TUI model
type ModelConfig struct {
	Service       Answerer
	Index         IndexInfo // optional
	AssistantName string
	// Renderer is the Lip Gloss renderer to use for styling. If nil, the
	// default renderer (local terminal) is used.
	Renderer *lipgloss.Renderer
}

// answerMsg carries a finished Answer call back into Update.
type answerMsg struct {
	resp    faq.Response
	err     error
	elapsed time.Duration
}

// Model is the root BubbleTea model
type Model struct {
	config ModelConfig
	styles Styles

	chat      ChatViewModel
	statusBar StatusBarModel
	input     textinput.Model

	width    int
	height   int
	pending  bool
	quitting bool
}

// NewModel creates the root TUI model
func NewModel(config ModelConfig) Model {
	r := config.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	styles := NewStyles(r)

	ti := textinput.New()
	ti.Placeholder = "Tulis pertanyaan..."
	ti.CharLimit = 500
	ti.Prompt = "> "
	ti.Focus()

	m := Model{
		config:    config,
		styles:    styles,
		chat:      NewChatViewModel(styles, config.AssistantName),
		statusBar: NewStatusBarModel(styles),
		input:     ti,
	}
	m.refreshStatus()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.chat.Viewport, cmd = m.chat.Viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.chat.AddMessage(RoleSystem, "Error: "+msg.err.Error())
		} else {
			m.chat.AddResponse(msg.resp)
		}
		m.statusBar.LastResponseTime = msg.elapsed
		m.refreshStatus()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.pending {
		return m, nil
	}

	m.input.Reset()
	m.chat.AddMessage(RoleUser, q)
	m.pending = true
	m.refreshStatus()
	return m, m.ask(q)
}

// ask runs the query off the UI goroutine.
func (m Model) ask(q string) tea.Cmd {
	svc := m.config.Service
	return func() tea.Msg {
		start := time.Now()
		resp, err := svc.Answer(context.Background(), q)
		return answerMsg{resp: resp, err: err, elapsed: time.Since(start)}
	}
}

func (m *Model) refreshStatus() {
	m.statusBar.Pending = m.pending
	if m.config.Index == nil {
		return
	}
	if snap := m.config.Index.Current(); snap != nil {
		m.statusBar.Items = snap.Items()
		m.statusBar.BuildID = snap.BuildID
		m.statusBar.Source = snap.Source
	}
}

func (m *Model) layout() {
	// title + input (with border) + status bar
	chrome := 1 + 2 + 1
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.chat.SetSize(m.width, h)
	m.input.Width = m.width - len(m.input.Prompt) - 1
	m.statusBar.Width = m.width
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	name := m.config.AssistantName
	if name == "" {
		name = "FAQ Bot"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render(name),
		m.chat.Viewport.View(),
		m.styles.InputStyle.Width(m.width).Render(m.input.View()),
		m.statusBar.View(),
	)
}
