package session

import (
	"fmt"
	"time"

	"github.com/tbourn/tributaria/internal/domain"
)

// State of a Session.
type State int

const (
	NoConversation State = iota
	Idle
	AwaitingReply
	Error
)

var stateNames = [...]string{
	NoConversation: "no_conversation",
	Idle:           "idle",
	AwaitingReply:  "awaiting_reply",
	Error:          "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Entry is one transcript line. Local entries (not yet or never persisted)
// have an ID prefixed with "local-".
type Entry struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"pending,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
}

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	Version      uint64       `json:"version"`
	State        State        `json:"state"`
	Typing       bool         `json:"typing"`
	Conversation *domain.Chat `json:"conversation,omitempty"`
	Entries      []Entry      `json:"entries"`
	Draft        string       `json:"draft"`
	Banner       string       `json:"banner,omitempty"`
}

func entryFrom(m domain.Message) Entry {
	return Entry{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

func entriesFrom(ms []domain.Message) []Entry {
	out := make([]Entry, 0, len(ms))
	for _, m := range ms {
		out = append(out, entryFrom(m))
	}
	return out
}
