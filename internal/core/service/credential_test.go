package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

type stubProvider struct {
	authErr    error
	refreshErr error

	refreshCalls int32
	refreshGate  chan struct{} // when non-nil, Refresh blocks until closed

	accessToken  string
	refreshToken string
	expiresIn    time.Duration
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		accessToken:  "access-1",
		refreshToken: "refresh-1",
		expiresIn:    time.Hour,
	}
}

func (p *stubProvider) Authenticate(_ context.Context, username, _ string) (*ports.AuthResult, error) {
	if p.authErr != nil {
		return nil, p.authErr
	}
	return &ports.AuthResult{
		Username:     username,
		AccessToken:  p.accessToken,
		RefreshToken: p.refreshToken,
		ExpiresIn:    p.expiresIn,
	}, nil
}

func (p *stubProvider) SignUp(_ context.Context, username, _, _ string) (*ports.SignUpResult, error) {
	return &ports.SignUpResult{UserSub: "sub-" + username}, nil
}

func (p *stubProvider) ConfirmSignUp(_ context.Context, _, _ string) error { return nil }

func (p *stubProvider) Refresh(ctx context.Context, _ string) (*ports.AuthResult, error) {
	atomic.AddInt32(&p.refreshCalls, 1)
	if p.refreshGate != nil {
		<-p.refreshGate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return &ports.AuthResult{AccessToken: "access-refreshed", ExpiresIn: time.Hour}, nil
}

func (p *stubProvider) ForgotPassword(_ context.Context, _ string) error { return nil }

func (p *stubProvider) ConfirmForgotPassword(_ context.Context, _, _, _ string) error { return nil }

func TestCredentialStore_Authenticate(t *testing.T) {
	provider := newStubProvider()
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	cred, err := store.Authenticate(context.Background(), "alice", "S3cret!pass")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if cred.Username != "alice" {
		t.Fatalf("username = %q, want alice", cred.Username)
	}
	if cred.IsGuest() {
		t.Fatalf("expected authenticated credential")
	}
	if got := store.Current(); got.AccessToken != "access-1" {
		t.Fatalf("stored token = %q, want access-1", got.AccessToken)
	}
}

func TestCredentialStore_Authenticate_EmptyInput(t *testing.T) {
	store := NewCredentialStore(newStubProvider(), time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "", "pass"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := store.Authenticate(context.Background(), "alice", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCredentialStore_Fresh_Guest(t *testing.T) {
	provider := newStubProvider()
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	cred, err := store.Fresh(context.Background())
	if err != nil {
		t.Fatalf("Fresh returned error: %v", err)
	}
	if !cred.IsGuest() {
		t.Fatalf("expected guest credential")
	}
	if atomic.LoadInt32(&provider.refreshCalls) != 0 {
		t.Fatalf("guest Fresh triggered a refresh")
	}
}

func TestCredentialStore_Fresh_NotNearExpiry(t *testing.T) {
	provider := newStubProvider()
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	cred, err := store.Fresh(context.Background())
	if err != nil {
		t.Fatalf("Fresh returned error: %v", err)
	}
	if cred.AccessToken != "access-1" {
		t.Fatalf("token replaced without reason: %q", cred.AccessToken)
	}
	if atomic.LoadInt32(&provider.refreshCalls) != 0 {
		t.Fatalf("refresh called %d times, want 0", provider.refreshCalls)
	}
}

func TestCredentialStore_Fresh_WithinMargin(t *testing.T) {
	provider := newStubProvider()
	provider.expiresIn = 30 * time.Second // inside the one-minute margin
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	cred, err := store.Fresh(context.Background())
	if err != nil {
		t.Fatalf("Fresh returned error: %v", err)
	}
	if cred.AccessToken != "access-refreshed" {
		t.Fatalf("token = %q, want access-refreshed", cred.AccessToken)
	}
	if got := atomic.LoadInt32(&provider.refreshCalls); got != 1 {
		t.Fatalf("refresh called %d times, want 1", got)
	}
	// The provider kept the refresh token, so the stored one survives.
	if store.Current().RefreshToken != "refresh-1" {
		t.Fatalf("refresh token lost on rotation-free refresh")
	}
}

func TestCredentialStore_Fresh_ConcurrentSharesOneRefresh(t *testing.T) {
	provider := newStubProvider()
	provider.expiresIn = 30 * time.Second
	provider.refreshGate = make(chan struct{})
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	const callers = 5
	var wg sync.WaitGroup
	tokens := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := store.Fresh(context.Background())
			if err != nil {
				t.Errorf("Fresh returned error: %v", err)
				return
			}
			tokens <- cred.AccessToken
		}()
	}

	// Let the first caller reach the provider and the rest queue behind it.
	for atomic.LoadInt32(&provider.refreshCalls) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(provider.refreshGate)
	wg.Wait()
	close(tokens)

	if got := atomic.LoadInt32(&provider.refreshCalls); got != 1 {
		t.Fatalf("refresh called %d times, want 1", got)
	}
	for tok := range tokens {
		if tok != "access-refreshed" {
			t.Fatalf("caller saw token %q, want access-refreshed", tok)
		}
	}
}

func TestCredentialStore_ForceRefresh_StaleTokenReplaced(t *testing.T) {
	provider := newStubProvider()
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	// The caller reports an older token; the store already moved on.
	cred, err := store.ForceRefresh(context.Background(), "access-0")
	if err != nil {
		t.Fatalf("ForceRefresh returned error: %v", err)
	}
	if cred.AccessToken != "access-1" {
		t.Fatalf("token = %q, want current access-1", cred.AccessToken)
	}
	if atomic.LoadInt32(&provider.refreshCalls) != 0 {
		t.Fatalf("provider called for an already-replaced token")
	}
}

func TestCredentialStore_ForceRefresh_Guest(t *testing.T) {
	store := NewCredentialStore(newStubProvider(), time.Minute, zerolog.Nop())

	if _, err := store.ForceRefresh(context.Background(), "whatever"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestCredentialStore_Refresh_InvalidTokenLogsOut(t *testing.T) {
	provider := newStubProvider()
	provider.refreshErr = domain.ErrRefreshInvalid
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	_, err := store.ForceRefresh(context.Background(), "access-1")
	if !errors.Is(err, domain.ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
	if !store.Current().IsGuest() {
		t.Fatalf("credential not cleared after dead refresh token")
	}
}

func TestCredentialStore_Refresh_ProviderErrorLogsOut(t *testing.T) {
	provider := newStubProvider()
	provider.refreshErr = domain.ErrProvider
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if _, err := store.ForceRefresh(context.Background(), "access-1"); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	// Any refresh failure clears the credential; an expired access token must
	// never sit behind a logged-in identity.
	if !store.Current().IsGuest() {
		t.Fatalf("provider failure left a stale credential in place")
	}
}

func TestCredentialStore_Fresh_FailedRefreshClearsCredential(t *testing.T) {
	provider := newStubProvider()
	provider.expiresIn = 30 * time.Second // forces a refresh on Fresh
	provider.refreshErr = domain.ErrProvider
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if _, err := store.Fresh(context.Background()); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if got := store.Current(); !got.IsGuest() {
		t.Fatalf("still holding credential for %q after failed refresh", got.Username)
	}
}

func TestCredentialStore_Refresh_SurvivesCallerCancellation(t *testing.T) {
	provider := newStubProvider()
	provider.expiresIn = 30 * time.Second
	store := NewCredentialStore(provider, time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	// The refresh result is shared across callers, so one caller abandoning
	// its request must not poison the provider call for the rest.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cred, err := store.Fresh(ctx)
	if err != nil {
		t.Fatalf("Fresh returned error: %v", err)
	}
	if cred.AccessToken != "access-refreshed" {
		t.Fatalf("token = %q, want access-refreshed", cred.AccessToken)
	}
}

func TestCredentialStore_Logout_Idempotent(t *testing.T) {
	store := NewCredentialStore(newStubProvider(), time.Minute, zerolog.Nop())

	if _, err := store.Authenticate(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	store.Logout()
	store.Logout()
	if !store.Current().IsGuest() {
		t.Fatalf("expected guest credential after logout")
	}
}
