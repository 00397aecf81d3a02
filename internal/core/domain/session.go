package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of one conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known variants.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Message is one turn in a conversation. Content is sanitized before it ever
// reaches a Message.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one continuous chat conversation: an immutable identifier plus
// an append-only message sequence in conversation order.
type Session struct {
	ID        uuid.UUID `json:"session_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates an empty session with a fresh identifier. Identifiers
// are never reused, even after the session is archived.
func NewSession(now time.Time) *Session {
	return &Session{ID: uuid.New(), CreatedAt: now}
}

// Snapshot returns a copy whose message slice is detached from the original,
// safe to hand to readers while appends continue.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	out := &Session{ID: s.ID, CreatedAt: s.CreatedAt}
	if len(s.Messages) > 0 {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	return out
}
