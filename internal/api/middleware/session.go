package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/aichat/chat-gateway/internal/core/service"
)

// ContextKey is where the resolved *service.SessionContext is stored on the
// echo context.
const ContextKey = "session_context"

// ContextResolver resolves a context id to its live session context.
type ContextResolver interface {
	Get(id string) (*service.SessionContext, error)
}

// Session validates the gateway-issued session JWT and injects the resolved
// session context. Requests with a missing, malformed, or expired token — or
// a token naming an evicted context — are rejected with 401.
func Session(jwtSecret string, resolver ContextResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
			}

			sid, _ := claims["sid"].(string)
			if sid == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing session id")
			}

			sc, err := resolver.Get(sid)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "session context expired, start a new session")
			}

			c.Set(ContextKey, sc)
			return next(c)
		}
	}
}
