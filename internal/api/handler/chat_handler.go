package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aichat/chat-gateway/internal/api/metrics"
	"github.com/aichat/chat-gateway/internal/core/domain"
)

// ChatHandler exposes the Access Controller of the caller's session context.
type ChatHandler struct{}

func NewChatHandler() *ChatHandler {
	return &ChatHandler{}
}

// Submit runs one chat exchange.
//
// @Summary      Send a chat message
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body      submitRequest  true  "User message"
// @Success      200   {object}  submitResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /chat [post]
func (h *ChatHandler) Submit(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tier := string(domain.TierGuest)
	if sc.Controller.Identity().Authenticated {
		tier = string(domain.TierAuthenticated)
	}

	start := time.Now()
	reply, err := sc.Controller.Submit(c.Request().Context(), req.Message)
	outcome := submitOutcome(err)
	metrics.MessagesTotal.WithLabelValues(tier, outcome).Inc()
	metrics.SubmitDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			metrics.RateLimitedTotal.WithLabelValues(tier).Inc()
		}
		return err
	}

	return c.JSON(http.StatusOK, submitResponse{Reply: toMessageResponse(reply)})
}

// Messages returns the active session's conversation.
//
// @Summary      Get the active conversation
// @Tags         chat
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Router       /chat/messages [get]
func (h *ChatHandler) Messages(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	id, msgs := sc.Controller.Messages()
	out := sessionResponse{SessionID: id.String(), Messages: make([]messageResponse, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, out)
}

// NewChat archives the current session and starts a fresh one.
//
// @Summary      Start a new chat
// @Tags         chat
// @Produce      json
// @Success      201  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Router       /chat/new [post]
func (h *ChatHandler) NewChat(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	s := sc.Controller.NewChat()
	return c.JSON(http.StatusCreated, toSessionResponse(s))
}

// History lists archived sessions, newest first.
//
// @Summary      List chat history
// @Tags         chat
// @Produce      json
// @Success      200  {object}  historyListResponse
// @Failure      401  {object}  errorResponse
// @Router       /chat/history [get]
func (h *ChatHandler) History(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	sessions := sc.Controller.History(c.Request().Context())
	out := historyListResponse{Sessions: make([]sessionSummaryResponse, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, sessionSummaryResponse{
			SessionID:    s.ID.String(),
			CreatedAt:    s.CreatedAt,
			MessageCount: len(s.Messages),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Activate switches the active session to an archived one.
//
// @Summary      Resume a session from history
// @Tags         chat
// @Produce      json
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  sessionResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /chat/history/{id}/activate [post]
func (h *ChatHandler) Activate(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	s, err := sc.Controller.SwitchTo(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(s))
}

// Quota reports the remaining questions and window reset time.
//
// @Summary      Get remaining quota
// @Tags         chat
// @Produce      json
// @Success      200  {object}  quotaResponse
// @Failure      401  {object}  errorResponse
// @Router       /quota [get]
func (h *ChatHandler) Quota(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	dec, err := sc.Controller.Quota(c.Request().Context())
	if err != nil {
		return err
	}

	out := quotaResponse{Tier: string(dec.Tier), Remaining: dec.Remaining}
	if !dec.ResetAt.IsZero() {
		resetAt := dec.ResetAt.UTC()
		out.ResetAt = &resetAt
	}
	return c.JSON(http.StatusOK, out)
}

// Me reports the caller's auth state.
//
// @Summary      Get the current identity
// @Tags         auth
// @Produce      json
// @Success      200  {object}  identityResponse
// @Failure      401  {object}  errorResponse
// @Router       /me [get]
func (h *ChatHandler) Me(c echo.Context) error {
	sc, err := ctxSession(c)
	if err != nil {
		return err
	}

	ident := sc.Controller.Identity()
	return c.JSON(http.StatusOK, identityResponse{
		Authenticated: ident.Authenticated,
		Username:      ident.Username,
	})
}

func submitOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrAuthExpired):
		return "auth_expired"
	default:
		return "upstream_error"
	}
}
