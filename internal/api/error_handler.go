package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. ResetAt
// is populated on rate-limit denials only, so the UI can show a countdown.
type errorResponse struct {
	Error   string     `json:"error"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps the domain error taxonomy to deterministic HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var rle *domain.RateLimitError
		if errors.As(err, &rle) {
			resetAt := rle.ResetAt.UTC()
			_ = c.JSON(http.StatusTooManyRequests, errorResponse{
				Error:   "rate limit exceeded, please try again later",
				ResetAt: &resetAt,
			})
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrCodeExpired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, domain.ErrUnconfirmedAccount):
		return http.StatusForbidden, "account not confirmed, please verify your email"
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, "username already exists"
	case errors.Is(err, domain.ErrAuthExpired), errors.Is(err, domain.ErrRefreshInvalid):
		return http.StatusUnauthorized, "authentication expired, please log in again"
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded, please try again later"
	case errors.Is(err, domain.ErrUnknownSession), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, domain.ErrContextNotFound):
		return http.StatusUnauthorized, "session context expired, start a new session"
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway, "identity provider unavailable, please try again"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "chat service unavailable, please try again"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
