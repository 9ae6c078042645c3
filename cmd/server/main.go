package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evoquefitness/access-gateway/internal/api"
	"github.com/evoquefitness/access-gateway/internal/api/handler"
	"github.com/evoquefitness/access-gateway/internal/core/service"
	"github.com/evoquefitness/access-gateway/internal/infrastructure/backend"
	mongodb "github.com/evoquefitness/access-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/evoquefitness/access-gateway/internal/infrastructure/db/redis"
	"github.com/evoquefitness/access-gateway/internal/infrastructure/queue"
	"github.com/evoquefitness/access-gateway/internal/infrastructure/realtime"
	"github.com/evoquefitness/access-gateway/internal/infrastructure/storage/memory"
	"github.com/evoquefitness/access-gateway/internal/pkg/config"
	"github.com/evoquefitness/access-gateway/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Durable session scope (Redis) ---
	rdb, err := redisdb.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Audit trail (MongoDB) ---
	mongoClient, mongoDB, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	// --- Core wiring ---
	store := service.NewSessionStore(memory.NewScope(), redisdb.NewSessionScope(rdb), log)
	revocations := service.NewRevocations()
	bypass := service.NewBypassTokens()
	directory := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)

	audit := queue.NewAuditDispatcher(0, mongodb.NewAuditRepository(mongoDB), log)
	audit.Start(ctx)

	// The realtime listener is the process-wide owner of the invalidation
	// channel; the auth service announces logins to it, never creates it.
	var listener *realtime.Listener
	authService := service.NewAuthService(directory, store, revocations, bypass, announcerFunc(func(userID string) {
		if listener != nil {
			listener.Announce(userID)
		}
	}), audit, log)
	listener = realtime.NewListener(cfg.Realtime.URL, authService, log)
	listener.Start(ctx)

	guard := service.NewGuardService(store, directory, revocations, bypass, cfg.RemoteCheckTimeout, log)
	guard.SetReady()

	// --- HTTP server ---
	e := api.NewRouter(api.Deps{
		Auth:      authService,
		Store:     store,
		Guard:     guard,
		Health:    handler.NewHealthDependenciesHandler(mongoDB, rdb, directory),
		JWTSecret: cfg.JWTSecret,
		Log:       log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("access gateway listening")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// announcerFunc adapts a function to the SessionAnnouncer port.
type announcerFunc func(userID string)

func (f announcerFunc) Announce(userID string) { f(userID) }
