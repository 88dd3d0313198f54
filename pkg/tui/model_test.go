package tui

import (
	"context"
	"testing"

	"github.com/andrew/tutor-chat/pkg/conversation"
	"github.com/andrew/tutor-chat/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	reply func(ctx context.Context, history []models.WireTurn) (string, error)
}

func (s stubClient) Chat(ctx context.Context, history []models.WireTurn) (string, error) {
	return s.reply(ctx, history)
}

func (s stubClient) Close() error { return nil }

func echo() stubClient {
	return stubClient{reply: func(_ context.Context, h []models.WireTurn) (string, error) {
		return "echo: " + h[len(h)-1].Content, nil
	}}
}

func newTestModel(t *testing.T, client stubClient) (Model, *conversation.Dispatcher) {
	t.Helper()
	d := conversation.NewDispatcher(conversation.NewStore(), client)
	m := New(d, WithRenderer(nil))
	t.Cleanup(func() {
		m.Close()
		_ = d.Close()
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), d
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func TestModel_LandingView(t *testing.T) {
	m, _ := newTestModel(t, echo())

	view := m.View()
	assert.Contains(t, view, "Welcome Back")
	for _, a := range conversation.Actions() {
		assert.Contains(t, view, a.Label)
	}
}

func TestModel_TypedMessageRoundTrip(t *testing.T) {
	m, d := newTestModel(t, echo())

	m.textinput.SetValue("Help me with coding")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	d.Wait()
	m = update(t, m, storeChangedMsg{})

	assert.Equal(t, "", m.textinput.Value())
	assert.Equal(t, models.ModeConversation, m.snap.Mode)
	view := m.View()
	assert.NotContains(t, view, "Welcome Back")
	assert.Contains(t, view, "Help me with coding")
	assert.Contains(t, view, "echo: Help me with coding")
}

func TestModel_BlankInputOnConversationIsIgnored(t *testing.T) {
	m, d := newTestModel(t, echo())
	_, err := d.Turn(context.Background(), "hi")
	require.NoError(t, err)
	m = update(t, m, storeChangedMsg{})

	m.textinput.SetValue("   ")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	d.Wait()

	assert.Len(t, d.Store().Messages(), 2)
}

func TestModel_PickActionFromLanding(t *testing.T) {
	m, d := newTestModel(t, echo())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	d.Wait()

	msgs := d.Store().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Help me plan and strategize", msgs[0].Text)
}

func TestModel_ActionCursorWraps(t *testing.T) {
	m, _ := newTestModel(t, echo())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, len(conversation.Actions())-1, m.actionCursor)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.actionCursor)
}

func TestModel_SendDisabledWhilePending(t *testing.T) {
	release := make(chan struct{})
	client := stubClient{reply: func(ctx context.Context, _ []models.WireTurn) (string, error) {
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
	m, d := newTestModel(t, client)

	require.True(t, d.Submit("first"))
	m = update(t, m, storeChangedMsg{})
	assert.True(t, m.snap.Pending)
	assert.Contains(t, m.View(), "thinking")

	m.textinput.SetValue("second")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "second", m.textinput.Value(), "input is kept while sending is disabled")

	close(release)
	d.Wait()
	m = update(t, m, storeChangedMsg{})
	assert.False(t, m.snap.Pending)
	assert.Len(t, m.snap.Messages, 2)
}

func TestModel_FailedTurnRendersInTimeline(t *testing.T) {
	client := stubClient{reply: func(context.Context, []models.WireTurn) (string, error) {
		return "", assert.AnError
	}}
	m, d := newTestModel(t, client)

	_, _ = d.Turn(context.Background(), "hello")
	m = update(t, m, storeChangedMsg{})

	assert.Contains(t, m.View(), "couldn't connect")
}

func TestModel_QuitStopsWatcher(t *testing.T) {
	m, _ := newTestModel(t, echo())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	// a pending wait returns once the watcher is stopped
	assert.Nil(t, m.watcher.wait()())
}
