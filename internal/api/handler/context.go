package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aichat/chat-gateway/internal/api/middleware"
	"github.com/aichat/chat-gateway/internal/core/service"
)

// ctxSession extracts the session context injected by the Session middleware
// and fast-fails before any service call when the middleware did not run.
func ctxSession(c echo.Context) (*service.SessionContext, error) {
	sc, _ := c.Get(middleware.ContextKey).(*service.SessionContext)
	if sc == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session context")
	}
	return sc, nil
}
