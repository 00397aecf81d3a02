package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aichat/chat-gateway/internal/api"
	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
	"github.com/aichat/chat-gateway/internal/core/service"
	"github.com/aichat/chat-gateway/internal/infrastructure/chatapi"
	"github.com/aichat/chat-gateway/internal/infrastructure/config"
	"github.com/aichat/chat-gateway/internal/infrastructure/identity"
	"github.com/aichat/chat-gateway/internal/infrastructure/quota"
	redisinfra "github.com/aichat/chat-gateway/internal/infrastructure/redis"
	"github.com/aichat/chat-gateway/pkg/logger"

	_ "github.com/aichat/chat-gateway/docs"
)

// @title        Chat Gateway API
// @version      1.0
// @description  Session, credential, and rate-limit gateway in front of a chat backend.
// @BasePath     /
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := identity.NewCognitoProvider(ctx, cfg.Cognito.Region, cfg.Cognito.ClientID, cfg.Cognito.Timeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cognito provider init failed")
	}

	chatClient := chatapi.NewClient(cfg.Chat.BaseURL, cfg.Chat.Timeout, cfg.ClientVersion, log)

	policy := domain.QuotaPolicy{
		GuestLimit:         cfg.RateLimit.GuestLimit,
		AuthenticatedLimit: cfg.RateLimit.AuthenticatedLimit,
		Window:             cfg.RateLimit.Window,
	}

	var (
		tracker     ports.QuotaTracker
		redisClient *goredis.Client
	)
	switch cfg.RateLimit.Backend {
	case "redis":
		redisClient, err = redisinfra.Connect(ctx, redisinfra.Config{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connection failed")
		}
		defer redisClient.Close()
		tracker = quota.NewRedisTracker(redisClient, policy)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis quota backend")
	default:
		tracker = service.NewMemoryQuotaTracker(policy)
		log.Info().Msg("using in-memory quota backend")
	}

	factory := func(id string) *service.SessionContext {
		creds := service.NewCredentialStore(provider, cfg.Auth.RefreshMargin, log)
		registry := service.NewSessionRegistry()
		controller := service.NewAccessController(
			id,
			creds,
			registry,
			tracker,
			chatClient,
			chatClient,
			cfg.Chat.MaxMessageLength,
			log,
		)
		return &service.SessionContext{
			ID:          id,
			CreatedAt:   time.Now().UTC(),
			Credentials: creds,
			Controller:  controller,
		}
	}
	manager := service.NewContextManager(cfg.Session.TTL, factory)

	e := api.NewRouter(api.RouterConfig{
		Manager:    manager,
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: cfg.Session.TTL,
		Redis:      redisClient,
		Log:        log,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
