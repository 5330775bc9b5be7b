// Package tui is the terminal chat client. Conversation state lives in a
// chatcache.State and every change goes through chatcache.Reduce.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/chatcache"
	"github.com/Raj-Randive/chatdocs/pkg/client"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// ChatAPI is the subset of the API client the TUI needs.
type ChatAPI interface {
	ListMessages(ctx context.Context, fileID string, limit int, cursor string) (*client.MessagePage, error)
	SendMessage(ctx context.Context, fileID, text string, onText func(cumulative string)) (string, error)
}

type loadedMsg struct {
	snap chatcache.Snapshot
	err  error
}

type chunkMsg struct{ text string }

type doneMsg struct{ err error }

// Model is the Bubble Tea model for a conversation about one file.
type Model struct {
	api      ChatAPI
	fileID   string
	title    string
	pageSize int
	timeout  time.Duration

	state    chatcache.State
	input    textinput.Model
	viewport viewport.Model
	stream   chan tea.Msg
	ready    bool
	now      func() time.Time
}

func New(api ChatAPI, fileID, title string, pageSize int, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.CharLimit = 4000
	ti.Focus()
	return Model{
		api:      api,
		fileID:   fileID,
		title:    title,
		pageSize: pageSize,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		now:      time.Now,
	}
}

// State exposes the current conversation state.
func (m Model) State() chatcache.State { return m.state }

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.load())
}

func (m Model) load() tea.Cmd {
	api, fileID, limit, timeout := m.api, m.fileID, m.pageSize, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		page, err := api.ListMessages(ctx, fileID, limit, "")
		if err != nil {
			return loadedMsg{err: err}
		}
		return loadedMsg{snap: chatcache.Snapshot{Pages: []chatcache.Page{toPage(page)}}}
	}
}

func toPage(p *client.MessagePage) chatcache.Page {
	out := chatcache.Page{NextCursor: p.NextCursor, Messages: make([]chatcache.Message, 0, len(p.Messages))}
	for _, msg := range p.Messages {
		out.Messages = append(out.Messages, chatcache.Message{
			ID:            msg.ID,
			Text:          msg.Text,
			IsUserMessage: msg.IsUserMessage,
			CreatedAt:     msg.CreatedAt,
		})
	}
	return out
}

// send streams the answer to text. Chunks and the final result arrive as
// messages on ch.
func (m Model) send(ch chan tea.Msg, text string) tea.Cmd {
	api, fileID, timeout := m.api, m.fileID, m.timeout
	return func() tea.Msg {
		go func() {
			defer close(ch)
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_, err := api.SendMessage(ctx, fileID, text, func(s string) {
				ch <- chunkMsg{text: s}
			})
			ch <- doneMsg{err: err}
		}()
		return nil
	}
}

func waitFor(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) dispatch(a chatcache.Action) Model {
	m.state = chatcache.Reduce(m.state, a)
	m.viewport.SetContent(renderMessages(m.state.Snapshot))
	m.viewport.GotoBottom()
	return m
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-fh)
		m.viewport.SetContent(renderMessages(m.state.Snapshot))
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.state.Pending() {
				return m, nil
			}
			m = m.dispatch(chatcache.SetInput{Text: text})
			m = m.dispatch(chatcache.Submit{Text: text, TempID: uuid.NewString(), At: m.now()})
			m.input.SetValue(m.state.Input)
			ch := make(chan tea.Msg, 16)
			m.stream = ch
			return m, tea.Batch(m.send(ch, text), waitFor(ch))
		}

	case loadedMsg:
		if msg.err != nil {
			return m.dispatch(chatcache.Fail{Err: msg.err.Error()}), nil
		}
		return m.dispatch(chatcache.Reload{Snapshot: msg.snap}), nil

	case chunkMsg:
		m = m.dispatch(chatcache.Chunk{Cumulative: msg.text, At: m.now()})
		return m, waitFor(m.stream)

	case doneMsg:
		m.stream = nil
		if msg.err != nil {
			m = m.dispatch(chatcache.Fail{Err: msg.err.Error()})
			m.input.SetValue(m.state.Input)
			return m, nil
		}
		m = m.dispatch(chatcache.Succeed{})
		return m, m.load()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.title)
	history := historyBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	return header + "\n" + history + "\n" + input + "\n" + m.status()
}

func (m Model) status() string {
	if m.state.Err != "" {
		return errorStyle.Render("Error: " + m.state.Err)
	}
	switch m.state.Phase {
	case chatcache.PhaseOptimistic:
		return statusStyle.Render("Thinking...")
	case chatcache.PhaseStreaming:
		return statusStyle.Render("Answering...")
	}
	return statusStyle.Render(fmt.Sprintf("%d messages", len(m.state.Snapshot.Messages())))
}

// renderMessages lays out the conversation oldest first.
func renderMessages(snap chatcache.Snapshot) string {
	msgs := snap.Messages()
	if len(msgs) == 0 {
		return "No messages yet. Ask something about this document."
	}
	var b strings.Builder
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.IsUserMessage {
			b.WriteString(userStyle.Render("You: "))
		} else {
			b.WriteString(botStyle.Render("AI: "))
		}
		b.WriteString(msg.Text)
		if i > 0 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
