package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/aichat/chat-gateway/internal/api/handler"
	"github.com/aichat/chat-gateway/internal/api/middleware"
	"github.com/aichat/chat-gateway/internal/core/service"
)

// RouterConfig carries everything the HTTP layer needs from the composition
// root.
type RouterConfig struct {
	Manager    *service.ContextManager
	JWTSecret  string
	SessionTTL time.Duration
	Redis      *redis.Client // nil with the memory quota backend
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("chatgw"))

	// --- Handlers ---
	sessionHandler := handler.NewSessionHandler(cfg.Manager, cfg.JWTSecret, cfg.SessionTTL)
	authHandler := handler.NewAuthHandler()
	chatHandler := handler.NewChatHandler()

	// --- Probes, metrics, docs (no session required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(cfg.Redis).Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Session bootstrap ---
	e.POST("/session", sessionHandler.Create)

	// --- Everything below runs inside a session context ---
	s := e.Group("", middleware.Session(cfg.JWTSecret, cfg.Manager))

	s.DELETE("/session", sessionHandler.Destroy)

	s.POST("/auth/login", authHandler.Login)
	s.POST("/auth/signup", authHandler.SignUp)
	s.POST("/auth/confirm", authHandler.Confirm)
	s.POST("/auth/forgot-password", authHandler.ForgotPassword)
	s.POST("/auth/confirm-forgot-password", authHandler.ConfirmForgotPassword)
	s.POST("/auth/logout", authHandler.Logout)

	s.POST("/chat", chatHandler.Submit)
	s.GET("/chat/messages", chatHandler.Messages)
	s.POST("/chat/new", chatHandler.NewChat)
	s.GET("/chat/history", chatHandler.History)
	s.POST("/chat/history/:id/activate", chatHandler.Activate)

	s.GET("/quota", chatHandler.Quota)
	s.GET("/me", chatHandler.Me)

	return e
}
