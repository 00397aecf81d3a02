package handler

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/aichat/chat-gateway/internal/api/metrics"
	"github.com/aichat/chat-gateway/internal/core/service"
)

// ContextManager is the subset of the core context manager the session
// handler needs.
type ContextManager interface {
	Create() *service.SessionContext
	Delete(id string)
	Len() int
}

// SessionHandler creates and tears down browser session contexts and issues
// the JWT that binds a browser to its context.
type SessionHandler struct {
	manager   ContextManager
	jwtSecret string
	ttl       time.Duration
}

func NewSessionHandler(manager ContextManager, jwtSecret string, ttl time.Duration) *SessionHandler {
	return &SessionHandler{manager: manager, jwtSecret: jwtSecret, ttl: ttl}
}

type createSessionResponse struct {
	Token     string    `json:"token"`
	ContextID string    `json:"context_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create starts a new session context.
//
// @Summary      Start a browser session
// @Tags         session
// @Produce      json
// @Success      201  {object}  createSessionResponse
// @Failure      500  {object}  errorResponse
// @Router       /session [post]
func (h *SessionHandler) Create(c echo.Context) error {
	sc := h.manager.Create()
	metrics.ActiveContexts.Set(float64(h.manager.Len()))

	expiresAt := time.Now().UTC().Add(h.ttl)
	claims := jwt.MapClaims{
		"sid": sc.ID,
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.manager.Delete(sc.ID)
		return err
	}

	return c.JSON(http.StatusCreated, createSessionResponse{
		Token:     token,
		ContextID: sc.ID,
		ExpiresAt: expiresAt,
	})
}

// Destroy tears down the caller's session context.
//
// @Summary      End the browser session
// @Tags         session
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /session [delete]
func (h *SessionHandler) Destroy(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}
	h.manager.Delete(sc.ID)
	metrics.ActiveContexts.Set(float64(h.manager.Len()))
	return c.NoContent(http.StatusNoContent)
}
