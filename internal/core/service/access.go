package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
	"github.com/aichat/chat-gateway/internal/pkg/sanitize"
)

const defaultHistoryLimit = 30

// AccessController composes the credential store, session registry, and quota
// tracker into the single decision every chat exchange passes through: is
// this request allowed, and under which identity.
type AccessController struct {
	contextID    string
	creds        ports.CredentialStore
	registry     ports.SessionRegistry
	quota        ports.QuotaTracker
	chat         ports.ChatClient
	history      ports.HistoryStore
	maxLen       int
	historyLimit int
	now          func() time.Time
	log          zerolog.Logger
}

func NewAccessController(
	contextID string,
	creds ports.CredentialStore,
	registry ports.SessionRegistry,
	quota ports.QuotaTracker,
	chat ports.ChatClient,
	history ports.HistoryStore,
	maxLen int,
	log zerolog.Logger,
) *AccessController {
	if maxLen <= 0 {
		maxLen = sanitize.DefaultMaxMessageLength
	}
	return &AccessController{
		contextID:    contextID,
		creds:        creds,
		registry:     registry,
		quota:        quota,
		chat:         chat,
		history:      history,
		maxLen:       maxLen,
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
		log:          log,
	}
}

// Submit runs one chat exchange end to end: sanitize the input, freshen the
// credential, reserve quota, append the user turn, call the chat backend, and
// append the reply. A failed backend exchange still consumes quota — quota is
// spent on attempt, not on success.
func (a *AccessController) Submit(ctx context.Context, text string) (domain.Message, error) {
	clean, err := sanitize.Message(text, a.maxLen)
	if err != nil {
		return domain.Message{}, fmt.Errorf("submit: %w", err)
	}

	cred := a.creds.Current()
	if !cred.IsGuest() {
		cred, err = a.creds.Fresh(ctx)
		if err != nil {
			a.log.Warn().Err(err).Msg("credential refresh failed on submit")
			return domain.Message{}, fmt.Errorf("submit: %w", domain.ErrAuthExpired)
		}
	}
	tier := cred.Tier()

	decision, err := a.quota.CheckAndReserve(ctx, a.quotaKey(cred), tier)
	if err != nil {
		return domain.Message{}, fmt.Errorf("submit: reserve quota: %w", err)
	}
	if !decision.Allowed {
		return domain.Message{}, &domain.RateLimitError{ResetAt: decision.ResetAt}
	}

	active := a.registry.Active()
	userMsg := domain.Message{Role: domain.RoleUser, Content: clean, Timestamp: a.now().UTC()}
	if err := a.registry.Append(active.ID, userMsg); err != nil {
		return domain.Message{}, fmt.Errorf("submit: %w", err)
	}

	reply, err := a.exchange(ctx, clean, active.ID, cred)
	if err != nil {
		return domain.Message{}, fmt.Errorf("submit: %w", err)
	}

	assistantMsg := domain.Message{Role: domain.RoleAssistant, Content: reply, Timestamp: a.now().UTC()}
	if err := a.registry.Append(active.ID, assistantMsg); err != nil {
		// The user switched sessions while the backend was answering. The
		// reply still reaches them in the response body.
		a.log.Warn().Err(err).Str("session_id", active.ID.String()).Msg("reply arrived for inactive session")
	}

	return assistantMsg, nil
}

// exchange delegates to the chat backend. A 401 triggers one reactive refresh
// and a single retry; a second rejection, or a failed refresh, invalidates
// the credential entirely.
func (a *AccessController) exchange(ctx context.Context, text string, sessionID uuid.UUID, cred domain.Credential) (string, error) {
	req := ports.ChatRequest{
		Message:     text,
		SessionID:   sessionID.String(),
		GuestMode:   cred.IsGuest(),
		BearerToken: cred.AccessToken,
	}

	reply, err := a.chat.SendMessage(ctx, req)
	if err == nil {
		return reply, nil
	}
	if cred.IsGuest() || !errors.Is(err, domain.ErrAuthExpired) {
		return "", err
	}

	refreshed, rerr := a.creds.ForceRefresh(ctx, cred.AccessToken)
	if rerr != nil {
		a.creds.Logout()
		return "", domain.ErrAuthExpired
	}

	req.BearerToken = refreshed.AccessToken
	reply, err = a.chat.SendMessage(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			a.creds.Logout()
		}
		return "", err
	}
	return reply, nil
}

// NewChat archives the current session and starts a fresh one.
func (a *AccessController) NewChat() *domain.Session {
	return a.registry.StartNew()
}

// SwitchTo reactivates a session picked from the history sidebar.
func (a *AccessController) SwitchTo(sessionID uuid.UUID) (*domain.Session, error) {
	return a.registry.SwitchTo(sessionID)
}

// Messages returns the active session's id and its messages in conversation
// order.
func (a *AccessController) Messages() (uuid.UUID, []domain.Message) {
	active := a.registry.Active()
	return active.ID, active.Messages
}

// History lists archived sessions, newest first. For authenticated users the
// external history store is consulted first; a fetch failure degrades to the
// locally-known archive rather than failing the listing.
func (a *AccessController) History(ctx context.Context) []*domain.Session {
	cred := a.creds.Current()
	if !cred.IsGuest() {
		remote, err := a.history.FetchSessions(ctx, cred.AccessToken, a.historyLimit)
		if err != nil {
			a.log.Warn().Err(err).Msg("history fetch failed, serving local archive")
		} else {
			a.registry.MergeRemote(remote)
		}
	}
	return a.registry.History()
}

// Quota reports the remaining reservations and reset time for display.
func (a *AccessController) Quota(ctx context.Context) (domain.QuotaDecision, error) {
	cred := a.creds.Current()
	return a.quota.Remaining(ctx, a.quotaKey(cred), cred.Tier())
}

// Identity exposes the read-only auth state for the UI renderer.
func (a *AccessController) Identity() ports.Identity {
	cred := a.creds.Current()
	return ports.Identity{Username: cred.Username, Authenticated: !cred.IsGuest()}
}

// quotaKey buckets authenticated users by identity, so overlapping tabs share
// one window, and guests by session context.
func (a *AccessController) quotaKey(cred domain.Credential) string {
	if !cred.IsGuest() {
		return "user:" + cred.Username
	}
	return "ctx:" + a.contextID
}
