package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/config"
	httpapi "github.com/tbourn/tributaria/internal/http"
	"github.com/tbourn/tributaria/internal/observability"
	"github.com/tbourn/tributaria/internal/repo"
	"github.com/tbourn/tributaria/internal/sysutil"
)

const (
	shutdownGrace = 20 * time.Second
	janitorEvery  = time.Hour
	sessionsGrace = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, cmd.ErrOrStderr())
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version := sysutil.Version()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return fmt.Errorf("gorm tracing: %w", err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		return err
	}

	r := gin.New()
	teardown := httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	// Closing the sessions ends open event streams, which Shutdown would
	// otherwise wait on.
	sessionsDone := make(chan struct{})
	srv.RegisterOnShutdown(func() {
		defer close(sessionsDone)
		sctx, cancel := context.WithTimeout(context.Background(), sessionsGrace)
		defer cancel()
		if err := teardown(sctx); err != nil {
			log.Warn().Err(err).Msg("sessions did not drain")
		}
	})

	go runJanitor(ctx, db, janitorEvery)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("base_path", cfg.APIBasePath).
			Bool("simulated_reply", cfg.Webhook.Simulated()).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	select {
	case <-sessionsDone:
	case <-sctx.Done():
	}
	log.Info().Msg("bye")
	return nil
}

// runJanitor deletes expired revocations and idempotency records until ctx
// is done.
func runJanitor(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		purgeExpired(ctx, db, time.Now().UTC())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func purgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (tokens, keys int64) {
	lg := log.With().Str("component", "janitor").Logger()
	tokens, err := repo.PurgeRevokedTokens(ctx, db, now)
	if err != nil {
		lg.Warn().Err(err).Msg("purge revoked tokens")
	}
	keys, err = repo.PurgeExpiredIdempotency(ctx, db, now)
	if err != nil {
		lg.Warn().Err(err).Msg("purge idempotency keys")
	}
	if tokens > 0 || keys > 0 {
		lg.Info().Int64("revoked_tokens", tokens).Int64("idempotency_keys", keys).Msg("purged expired records")
	}
	return tokens, keys
}
