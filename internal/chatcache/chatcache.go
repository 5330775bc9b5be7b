// Package chatcache is the client-side view of one file's conversation. The
// reducer applies optimistic updates while an answer streams in and rolls
// them back if the request fails.
//
// Reduce never mutates its inputs; every State it returns shares no
// writable memory with the State it was given.
package chatcache

import (
	"time"
)

// AIResponseID identifies the placeholder for the answer being streamed.
const AIResponseID = "ai-response"

type Message struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	IsUserMessage bool      `json:"isUserMessage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Page is one server page, newest message first.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// Snapshot is the cached list of pages, newest page first.
type Snapshot struct {
	Pages []Page
}

// Messages flattens the snapshot, newest first.
func (s Snapshot) Messages() []Message {
	var out []Message
	for _, p := range s.Pages {
		out = append(out, p.Messages...)
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	if s.Pages == nil {
		return Snapshot{}
	}
	pages := make([]Page, len(s.Pages))
	for i, p := range s.Pages {
		pages[i] = Page{
			Messages:   append([]Message(nil), p.Messages...),
			NextCursor: p.NextCursor,
		}
	}
	return Snapshot{Pages: pages}
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOptimistic
	PhaseStreaming
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseOptimistic:
		return "optimistic"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettled:
		return "settled"
	default:
		return "idle"
	}
}

type State struct {
	Snapshot Snapshot
	Input    string
	Phase    Phase
	Err      string

	backup      *Snapshot
	backupInput string
}

// Pending reports whether a submission has not settled yet.
func (s State) Pending() bool {
	return s.Phase == PhaseOptimistic || s.Phase == PhaseStreaming
}

// Action is one of SetInput, Submit, Chunk, Fail, Succeed or Reload.
type Action interface {
	isAction()
}

// SetInput replaces the text being typed.
type SetInput struct{ Text string }

// Submit adds the question optimistically and remembers how to undo it.
type Submit struct {
	Text   string
	TempID string
	At     time.Time
}

// Chunk carries the whole answer received so far.
type Chunk struct {
	Cumulative string
	At         time.Time
}

// Fail restores the state from before Submit.
type Fail struct{ Err string }

type Succeed struct{}

// Reload replaces the cache with what the server returned.
type Reload struct{ Snapshot Snapshot }

func (SetInput) isAction() {}
func (Submit) isAction()   {}
func (Chunk) isAction()    {}
func (Fail) isAction()     {}
func (Succeed) isAction()  {}
func (Reload) isAction()   {}

// Reduce returns the state after a.
func Reduce(s State, a Action) State {
	next := s
	next.Snapshot = s.Snapshot.clone()
	if s.backup != nil {
		b := s.backup.clone()
		next.backup = &b
	}

	switch a := a.(type) {
	case SetInput:
		next.Input = a.Text

	case Submit:
		backup := s.Snapshot.clone()
		next.backup = &backup
		next.backupInput = a.Text
		next.Input = ""
		next.Err = ""
		next.Phase = PhaseOptimistic
		next.Snapshot = prepend(next.Snapshot, Message{
			ID:            a.TempID,
			Text:          a.Text,
			IsUserMessage: true,
			CreatedAt:     a.At,
		})

	case Chunk:
		if next.Phase != PhaseOptimistic && next.Phase != PhaseStreaming {
			return next
		}
		next.Phase = PhaseStreaming
		first := firstPage(next.Snapshot)
		if len(first.Messages) > 0 && first.Messages[0].ID == AIResponseID {
			first.Messages[0].Text = a.Cumulative
			next.Snapshot.Pages[0] = first
			return next
		}
		next.Snapshot = prepend(next.Snapshot, Message{
			ID:        AIResponseID,
			Text:      a.Cumulative,
			CreatedAt: a.At,
		})

	case Fail:
		if next.backup != nil {
			next.Snapshot = next.backup.clone()
			next.Input = next.backupInput
		}
		next.backup = nil
		next.backupInput = ""
		next.Phase = PhaseSettled
		next.Err = a.Err

	case Succeed:
		next.backup = nil
		next.backupInput = ""
		next.Phase = PhaseSettled

	case Reload:
		next.Snapshot = a.Snapshot.clone()
		next.backup = nil
		next.backupInput = ""
		next.Phase = PhaseIdle
		next.Err = ""
	}
	return next
}

// firstPage returns the newest page, creating an empty one when the cache is
// empty. snap must already be a private copy.
func firstPage(snap Snapshot) Page {
	if len(snap.Pages) == 0 {
		return Page{}
	}
	return snap.Pages[0]
}

// prepend puts m at the head of the newest page of a private copy.
func prepend(snap Snapshot, m Message) Snapshot {
	if len(snap.Pages) == 0 {
		snap.Pages = []Page{{}}
	}
	first := snap.Pages[0]
	first.Messages = append([]Message{m}, first.Messages...)
	snap.Pages[0] = first
	return snap
}
