package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

const defaultRefreshMargin = 60 * time.Second

// CredentialStore holds the current credential for one session context and
// drives its lifecycle against the external identity provider. Reads always
// see either the previous credential or the fully-replaced one, never a
// partial update.
type CredentialStore struct {
	provider ports.IdentityProvider
	margin   time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu   sync.RWMutex
	cred domain.Credential

	// refresh serializes provider refresh calls per access token. Duplicate
	// refreshes can invalidate the earlier refresh token with some providers,
	// so concurrent stale detections must share one in-flight call.
	refresh singleflight.Group
}

func NewCredentialStore(provider ports.IdentityProvider, margin time.Duration, log zerolog.Logger) *CredentialStore {
	if margin <= 0 {
		margin = defaultRefreshMargin
	}
	return &CredentialStore{
		provider: provider,
		margin:   margin,
		now:      time.Now,
		log:      log,
	}
}

// Authenticate logs in against the identity provider and replaces the current
// credential on success.
func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (domain.Credential, error) {
	if username == "" || password == "" {
		return domain.Credential{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	res, err := s.provider.Authenticate(ctx, username, password)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("authenticate: %w", err)
	}

	cred := domain.Credential{
		Username:     res.Username,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    s.now().UTC().Add(res.ExpiresIn),
	}
	s.set(cred)

	s.log.Info().Str("username", cred.Username).Time("expires_at", cred.ExpiresAt).Msg("authenticated")
	return cred, nil
}

// SignUp registers a new account. The credential is not touched: the account
// must be confirmed and logged in explicitly.
func (s *CredentialStore) SignUp(ctx context.Context, username, email, password string) (*ports.SignUpResult, error) {
	res, err := s.provider.SignUp(ctx, username, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return res, nil
}

func (s *CredentialStore) ConfirmSignUp(ctx context.Context, username, code string) error {
	if err := s.provider.ConfirmSignUp(ctx, username, code); err != nil {
		return fmt.Errorf("confirm sign up: %w", err)
	}
	return nil
}

func (s *CredentialStore) ForgotPassword(ctx context.Context, username string) error {
	if err := s.provider.ForgotPassword(ctx, username); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	return nil
}

func (s *CredentialStore) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	if err := s.provider.ConfirmForgotPassword(ctx, username, code, newPassword); err != nil {
		return fmt.Errorf("confirm forgot password: %w", err)
	}
	return nil
}

// Current returns a copy of the credential as it stands.
func (s *CredentialStore) Current() domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Fresh returns the current credential, refreshing it first when it is within
// the refresh margin of expiry. Guest credentials pass through untouched.
func (s *CredentialStore) Fresh(ctx context.Context) (domain.Credential, error) {
	cred := s.Current()
	if !cred.NeedsRefresh(s.now().UTC(), s.margin) {
		return cred, nil
	}
	return s.doRefresh(ctx, cred.AccessToken, false)
}

// ForceRefresh refreshes after a downstream 401. If the store already holds a
// token other than the rejected one, that newer token is returned without a
// provider call.
func (s *CredentialStore) ForceRefresh(ctx context.Context, staleToken string) (domain.Credential, error) {
	cred := s.Current()
	if cred.IsGuest() {
		return domain.Credential{}, domain.ErrNotAuthenticated
	}
	if cred.AccessToken != staleToken {
		return cred, nil
	}
	return s.doRefresh(ctx, staleToken, true)
}

// doRefresh performs one provider refresh, shared across concurrent callers
// observing the same stale access token. Any refresh failure clears the
// credential: the user is either fully authenticated or fully logged out,
// never holding an expired access token behind a logged-in identity.
func (s *CredentialStore) doRefresh(ctx context.Context, staleToken string, force bool) (domain.Credential, error) {
	v, err, _ := s.refresh.Do(staleToken, func() (any, error) {
		cur := s.Current()
		if cur.IsGuest() || cur.RefreshToken == "" {
			return domain.Credential{}, domain.ErrNotAuthenticated
		}
		// Another caller may have replaced the token while we queued.
		if cur.AccessToken != staleToken {
			return cur, nil
		}
		if !force && !cur.NeedsRefresh(s.now().UTC(), s.margin) {
			return cur, nil
		}

		// The result is shared with queued waiters, so the provider call must
		// not die with the first caller's request.
		res, rerr := s.provider.Refresh(context.WithoutCancel(ctx), cur.RefreshToken)
		if rerr != nil {
			s.log.Warn().Err(rerr).Str("username", cur.Username).Msg("refresh failed, logging out")
			s.Logout()
			return domain.Credential{}, fmt.Errorf("refresh: %w", rerr)
		}

		next := cur
		next.AccessToken = res.AccessToken
		next.ExpiresAt = s.now().UTC().Add(res.ExpiresIn)
		if res.RefreshToken != "" {
			next.RefreshToken = res.RefreshToken
		}
		s.set(next)

		s.log.Debug().Str("username", next.Username).Time("expires_at", next.ExpiresAt).Msg("credential refreshed")
		return next, nil
	})
	if err != nil {
		return domain.Credential{}, err
	}
	return v.(domain.Credential), nil
}

// Logout clears the credential unconditionally. Idempotent.
func (s *CredentialStore) Logout() {
	s.mu.Lock()
	s.cred = domain.Credential{}
	s.mu.Unlock()
}

func (s *CredentialStore) set(cred domain.Credential) {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
}
