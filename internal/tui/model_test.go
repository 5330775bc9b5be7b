package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/chatcache"
	"github.com/Raj-Randive/chatdocs/pkg/client"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	page *client.MessagePage
}

func (f *fakeAPI) ListMessages(ctx context.Context, fileID string, limit int, cursor string) (*client.MessagePage, error) {
	return f.page, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, fileID, text string, onText func(string)) (string, error) {
	onText("ok")
	return "ok", nil
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func loaded(t *testing.T) Model {
	t.Helper()
	api := &fakeAPI{page: &client.MessagePage{Messages: []client.Message{
		{ID: "m2", Text: "It covers cats."},
		{ID: "m1", Text: "What is this?", IsUserMessage: true},
	}}}
	m := New(api, "file-1", "paper.pdf", 10, time.Second)
	msg := m.load()()
	m, _ = step(t, m, msg)
	require.Equal(t, chatcache.PhaseIdle, m.State().Phase)
	require.Len(t, m.State().Snapshot.Messages(), 2)
	return m
}

func TestSubmitShowsOptimisticMessage(t *testing.T) {
	m := loaded(t)
	m.input.SetValue("And dogs?")

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Equal(t, chatcache.PhaseOptimistic, m.State().Phase)
	require.Equal(t, "", m.input.Value())
	head := m.State().Snapshot.Messages()[0]
	require.True(t, head.IsUserMessage)
	require.Equal(t, "And dogs?", head.Text)

	// A second Enter while pending is ignored.
	m.input.SetValue("again")
	m2, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Len(t, m2.State().Snapshot.Messages(), 3)
}

func TestStreamingThenFailureRestoresInput(t *testing.T) {
	m := loaded(t)
	m.input.SetValue("And dogs?")
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, cmd := step(t, m, chunkMsg{text: "Dogs are"})
	require.NotNil(t, cmd)
	require.Equal(t, chatcache.PhaseStreaming, m.State().Phase)
	require.Equal(t, chatcache.AIResponseID, m.State().Snapshot.Messages()[0].ID)

	m, _ = step(t, m, chunkMsg{text: "Dogs are not covered."})
	require.Equal(t, "Dogs are not covered.", m.State().Snapshot.Messages()[0].Text)
	require.Len(t, m.State().Snapshot.Messages(), 4)

	m, cmd = step(t, m, doneMsg{err: errors.New("stream reset")})
	require.Nil(t, cmd)
	require.Equal(t, chatcache.PhaseSettled, m.State().Phase)
	require.Equal(t, "stream reset", m.State().Err)
	require.Len(t, m.State().Snapshot.Messages(), 2)
	require.Equal(t, "And dogs?", m.input.Value())
}

func TestSuccessReloadsHistory(t *testing.T) {
	m := loaded(t)
	m.input.SetValue("And dogs?")
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = step(t, m, chunkMsg{text: "No."})

	m, cmd := step(t, m, doneMsg{})
	require.Equal(t, chatcache.PhaseSettled, m.State().Phase)
	require.NotNil(t, cmd)

	m, _ = step(t, m, cmd())
	require.Equal(t, chatcache.PhaseIdle, m.State().Phase)
	require.Len(t, m.State().Snapshot.Messages(), 2)
}

func TestRenderMessagesOldestFirst(t *testing.T) {
	snap := chatcache.Snapshot{Pages: []chatcache.Page{{Messages: []chatcache.Message{
		{ID: "2", Text: "second"},
		{ID: "1", Text: "first", IsUserMessage: true},
	}}}}
	out := renderMessages(snap)
	require.Less(t, indexOf(out, "first"), indexOf(out, "second"))
	require.Contains(t, renderMessages(chatcache.Snapshot{}), "No messages yet")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
