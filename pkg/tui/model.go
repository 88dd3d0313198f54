// Package tui renders a conversation session in the terminal. It only reads
// Store snapshots and forwards user intents (typed text, picked quick-start
// actions) to the Dispatcher.
package tui

import (
	"fmt"
	"strings"

	"github.com/andrew/tutor-chat/pkg/conversation"
	"github.com/andrew/tutor-chat/pkg/models"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 2
	footerHeight = 3
)

// Model is the bubbletea model for one chat screen
type Model struct {
	dispatcher *conversation.Dispatcher
	watcher    *watcher
	actions    []conversation.Action

	textinput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	renderer  *glamour.TermRenderer
	styles    Styles

	snap         models.Snapshot
	actionCursor int
	width        int
	height       int
	ready        bool
}

// Option configures a Model
type Option func(*Model)

// WithStyles overrides the default palette
func WithStyles(s Styles) Option {
	return func(m *Model) { m.styles = s }
}

// WithRenderer sets the markdown renderer for assistant replies; nil renders plain text
func WithRenderer(r *glamour.TermRenderer) Option {
	return func(m *Model) { m.renderer = r }
}

// New creates the chat screen for the dispatcher's session
func New(d *conversation.Dispatcher, opts ...Option) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Message (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(76),
	)

	m := Model{
		dispatcher: d,
		watcher:    newWatcher(d.Store()),
		actions:    conversation.Actions(),
		textinput:  ti,
		spinner:    sp,
		viewport:   viewport.New(80, 20),
		renderer:   renderer,
		styles:     styles,
		snap:       d.Store().Snapshot(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.watcher.wait(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.watcher.stop()
			return m, tea.Quit
		case tea.KeyEnter:
			m.send()
			return m, nil
		case tea.KeyTab, tea.KeyDown:
			if m.landing() {
				m.actionCursor = (m.actionCursor + 1) % len(m.actions)
				return m, nil
			}
		case tea.KeyShiftTab, tea.KeyUp:
			if m.landing() {
				m.actionCursor = (m.actionCursor + len(m.actions) - 1) % len(m.actions)
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		m.textinput.Width = max(10, msg.Width-4)
		m.ready = true
		m.refresh()

	case storeChangedMsg:
		m.snap = m.dispatcher.Store().Snapshot()
		m.refresh()
		cmds = append(cmds, m.watcher.wait())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	cmds = append(cmds, cmd)
	if scrollsTimeline(msg) {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// scrollsTimeline keeps typed letters from reaching the viewport's j/k/d/u bindings
func scrollsTimeline(msg tea.Msg) bool {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return true
	}
	switch key.Type {
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		return true
	}
	return false
}

// send forwards the typed text, or the highlighted action when the landing
// input is empty. Sending is disabled while a reply is pending.
func (m *Model) send() {
	if m.snap.Pending {
		return
	}

	text := strings.TrimSpace(m.textinput.Value())
	switch {
	case text != "":
		if m.dispatcher.Submit(text) {
			m.textinput.Reset()
		}
	case m.landing():
		m.dispatcher.SubmitAction(m.actions[m.actionCursor].ID)
	}
}

func (m Model) landing() bool {
	return m.snap.Mode == models.ModeLanding
}

// refresh re-renders the timeline and keeps the newest message in view
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTimeline())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder

	if m.landing() {
		b.WriteString(m.viewLanding())
	} else {
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		if m.snap.Pending {
			b.WriteString(m.spinner.View() + m.styles.Help.Render(" thinking..."))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.textinput.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.helpText()))
	return b.String()
}

func (m Model) viewLanding() string {
	var b strings.Builder
	b.WriteString(m.styles.Badge.Render("Free plan"))
	b.WriteString("\n\n")
	b.WriteString(m.styles.WelcomeIcon.Render("✦ ") + m.styles.Welcome.Render("Welcome Back"))
	b.WriteString("\n\n")

	buttons := make([]string, 0, len(m.actions))
	for i, a := range m.actions {
		style := m.styles.Action
		if i == m.actionCursor {
			style = m.styles.ActionActive
		}
		buttons = append(buttons, style.Render(a.Label))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	b.WriteString("\n\n")
	return b.String()
}

func (m Model) helpText() string {
	if m.landing() {
		return "tab: pick a suggestion • enter: send • esc: quit"
	}
	if m.snap.Pending {
		return "waiting for reply • esc: quit"
	}
	return "enter: send • ↑/↓ pgup/pgdn: scroll • esc: quit"
}

func (m Model) renderTimeline() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	parts := make([]string, 0, len(m.snap.Messages))
	for _, msg := range m.snap.Messages {
		parts = append(parts, m.renderMessage(msg, width))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderMessage(msg models.DisplayMessage, width int) string {
	stamp := m.styles.Timestamp.Render(msg.Timestamp.Format("15:04"))

	if msg.Origin == models.OriginUser {
		style := m.styles.User
		if maxWidth := width * 3 / 4; lipgloss.Width(msg.Text) > maxWidth {
			style = style.Width(maxWidth)
		}
		bubble := style.Render(msg.Text)
		block := lipgloss.JoinVertical(lipgloss.Right, bubble, stamp)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}

	if msg.Failed {
		return lipgloss.JoinVertical(lipgloss.Left, m.styles.Failed.Width(width-2).Render(msg.Text), stamp)
	}

	body := msg.Text
	if m.renderer != nil {
		if out, err := m.renderer.Render(msg.Text); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Assistant.Render(body), stamp)
}

// Close releases the store subscription; call it when the program exits
func (m Model) Close() {
	m.watcher.stop()
}

// Run starts the full-screen program and blocks until the user quits
func Run(d *conversation.Dispatcher, opts ...Option) error {
	m := New(d, opts...)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat ui failed: %w", err)
	}
	return nil
}
