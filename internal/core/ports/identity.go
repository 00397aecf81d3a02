package ports

import (
	"context"
	"time"
)

// AuthResult is the token bundle issued by the identity provider. On refresh
// the provider may rotate the refresh token; RefreshToken is empty when the
// existing one remains valid.
type AuthResult struct {
	Username     string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// SignUpResult reports the outcome of a registration attempt. Confirmed is
// false when the account still needs email verification.
type SignUpResult struct {
	UserSub   string
	Confirmed bool
}

// IdentityProvider is the external credential-issuing service (AWS Cognito in
// production). Implementations map provider error codes onto the domain error
// taxonomy; transient failures surface as domain.ErrProvider and are never
// retried by the core.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (*AuthResult, error)
	SignUp(ctx context.Context, username, email, password string) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	ForgotPassword(ctx context.Context, username string) error
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error
}
