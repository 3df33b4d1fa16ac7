// Janitor runs the retention sweep: revoked sessions and terminal refresh
// tokens older than SESSION_RETENTION are deleted every JANITOR_INTERVAL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"auth-session-engine/internal/config"
	"auth-session-engine/internal/db"
	"auth-session-engine/internal/janitor"
	"auth-session-engine/internal/logging"
	tokenrepo "auth-session-engine/internal/refreshtoken/repository"
	sessionrepo "auth-session-engine/internal/session/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("janitor: DATABASE_URL is required")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("janitor: logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("janitor: shutting down...")
		cancel()
	}()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("janitor: db", zap.Error(err))
	}
	defer pool.Close()

	j := janitor.New(
		sessionrepo.NewPostgresRepository(pool),
		tokenrepo.NewPostgresRepository(pool),
		cfg.SessionRetention(),
		cfg.JanitorInterval(),
		logger,
	)

	logger.Info("janitor: starting",
		zap.Duration("retention", cfg.SessionRetention()),
		zap.Duration("interval", cfg.JanitorInterval()))

	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("janitor: sweep failed", zap.Error(err))
	}
	logger.Info("janitor: stopped")
}
