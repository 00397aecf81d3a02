package ports

import (
	"context"
	"time"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

// ChatRequest carries one user turn to the external chat backend.
type ChatRequest struct {
	Message     string
	SessionID   string
	GuestMode   bool
	BearerToken string
}

// ChatClient is the external chat API. SendMessage returns the assistant's
// reply text. A 429 from the backend surfaces as domain.ErrRateLimited, a 401
// as domain.ErrAuthExpired (the caller invalidates its credential), and any
// other transport or server failure as domain.ErrUpstream.
type ChatClient interface {
	SendMessage(ctx context.Context, req ChatRequest) (string, error)
}

// RemoteSession is one persisted conversation as served by the history store.
type RemoteSession struct {
	SessionID string
	CreatedAt time.Time
	Messages  []domain.Message
}

// HistoryStore serves persisted conversations for authenticated users,
// ordered newest first.
type HistoryStore interface {
	FetchSessions(ctx context.Context, bearerToken string, limit int) ([]RemoteSession, error)
}
