package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"messenger/internal/cache"
	"messenger/internal/config"
	"messenger/internal/httpserver"
	"messenger/internal/security"
	"messenger/internal/store"
	"messenger/internal/ws"
)

// @title           Messenger API
// @version         1.0
// @description     Backend API for personal and group chats.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	st, err := store.Open(cfg)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer st.Close()

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(cfg.BcryptCost)

	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyEncryptKeys)
	if err != nil {
		logger.Fatal("failed to initialize encryptor", zap.Error(err))
	}

	profiles, closeCache := newProfileCache(cfg, logger)
	defer closeCache()

	hub := ws.NewHub(logger)

	// Build HTTP router
	router := httpserver.NewRouter(cfg, st, hub, tokenSvc, passwordHasher, encryptor, profiles, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr()), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newProfileCache returns a redis-backed cache when REDIS_ADDR is set.
// An unreachable redis is logged and the server runs uncached.
func newProfileCache(cfg *config.Config, logger *zap.Logger) (cache.ProfileCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.Nop{}, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, profile cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return cache.Nop{}, func() {}
	}
	return cache.NewRedisProfileCache(rdb, cfg.ProfileCacheTTL, logger), func() { rdb.Close() }
}
