package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

// CredentialStore owns the current credential and its lifecycle: login,
// signup, refresh, logout. All mutations replace the credential atomically.
type CredentialStore interface {
	Authenticate(ctx context.Context, username, password string) (domain.Credential, error)
	SignUp(ctx context.Context, username, email, password string) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	ForgotPassword(ctx context.Context, username string) error
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error

	// Fresh returns the current credential, refreshing it first when it is
	// within the configured margin of expiry. Concurrent callers share a
	// single in-flight refresh.
	Fresh(ctx context.Context) (domain.Credential, error)

	// ForceRefresh refreshes unconditionally after a downstream call reported
	// the access token rejected. staleToken is the token that was rejected; if
	// the store already holds a newer one, no provider call is made.
	ForceRefresh(ctx context.Context, staleToken string) (domain.Credential, error)

	Current() domain.Credential
	Logout()
}

// QuotaTracker enforces per-window reservation limits. CheckAndReserve is a
// single atomic check-then-increment: under concurrent calls for the same
// key, at most limit reservations succeed per window.
type QuotaTracker interface {
	CheckAndReserve(ctx context.Context, key string, tier domain.Tier) (domain.QuotaDecision, error)
	Remaining(ctx context.Context, key string, tier domain.Tier) (domain.QuotaDecision, error)
}

// SessionRegistry owns the active conversation and the archive of past ones.
// Messages are append-only; archived sessions are read-only until reactivated.
type SessionRegistry interface {
	Active() *domain.Session
	StartNew() *domain.Session
	Append(sessionID uuid.UUID, msg domain.Message) error
	SwitchTo(sessionID uuid.UUID) (*domain.Session, error)
	History() []*domain.Session
	MergeRemote(remote []RemoteSession)
}

// Identity is the read-only auth state exposed to the UI renderer.
type Identity struct {
	Username      string `json:"username,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// AccessController is the single entry point the UI consumes for chat
// exchanges and session navigation.
type AccessController interface {
	Submit(ctx context.Context, text string) (domain.Message, error)
	NewChat() *domain.Session
	SwitchTo(sessionID uuid.UUID) (*domain.Session, error)
	Messages() (uuid.UUID, []domain.Message)
	History(ctx context.Context) []*domain.Session
	Quota(ctx context.Context) (domain.QuotaDecision, error)
	Identity() Identity
}
