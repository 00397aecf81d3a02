package domain

import (
	"errors"
	"fmt"
	"time"
)

// User-correctable errors, rendered inline by the UI.
var ErrValidation = errors.New("invalid input")
var ErrInvalidCredentials = errors.New("invalid username or password")
var ErrUsernameTaken = errors.New("username already exists")
var ErrWeakPassword = errors.New("password does not meet requirements")
var ErrUnconfirmedAccount = errors.New("account not confirmed, please verify your email")
var ErrInvalidCode = errors.New("invalid verification code")
var ErrCodeExpired = errors.New("verification code has expired")

// Session-level errors.
var ErrRefreshInvalid = errors.New("refresh token no longer valid")
var ErrAuthExpired = errors.New("authentication expired, please log in again")
var ErrNotAuthenticated = errors.New("not authenticated")
var ErrRateLimited = errors.New("rate limit exceeded")
var ErrUnknownSession = errors.New("unknown session")
var ErrSessionNotFound = errors.New("session not found")
var ErrContextNotFound = errors.New("session context not found")

// Infrastructure errors. Transient from the caller's point of view; the user
// may retry immediately. Never retried by this core.
var ErrProvider = errors.New("identity provider unavailable")
var ErrUpstream = errors.New("chat service unavailable")

// RateLimitError is a denial that carries the window reset time so the UI can
// display a countdown. It unwraps to ErrRateLimited.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
