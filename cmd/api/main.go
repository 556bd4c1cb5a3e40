package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logicinvent/project-portfolio-api/internal/app/migrate"
	httpx "github.com/logicinvent/project-portfolio-api/internal/http"
	"github.com/logicinvent/project-portfolio-api/internal/identity"
	"github.com/logicinvent/project-portfolio-api/internal/repository/postgres"
	"github.com/logicinvent/project-portfolio-api/internal/service/allocation"
	"github.com/logicinvent/project-portfolio-api/internal/service/auth"
	"github.com/logicinvent/project-portfolio-api/internal/service/member"
	"github.com/logicinvent/project-portfolio-api/internal/service/project"
	"github.com/logicinvent/project-portfolio-api/internal/service/report"
	"github.com/logicinvent/project-portfolio-api/internal/telemetry"
	"github.com/logicinvent/project-portfolio-api/internal/ws"
	"github.com/logicinvent/project-portfolio-api/pkg/config"
	"github.com/logicinvent/project-portfolio-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		log.Error("failed to configure tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace flush failed", "error", err)
		}
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub(log)
	defer hub.Close()

	identityClient, err := identity.New(cfg.Members, log)
	if err != nil {
		log.Error("failed to configure identity client", "error", err)
		os.Exit(1)
	}
	resolver := member.NewResolver(repo, identityClient, member.Eligibility{
		OccupationID: cfg.Members.RequiredOccupationID,
		ContractID:   cfg.Members.RequiredContractID,
	}, log)

	authSvc, err := auth.New(cfg.Auth, log)
	if err != nil {
		log.Error("failed to configure authentication", "error", err)
		os.Exit(1)
	}

	router := httpx.NewRouter(httpx.Deps{
		Logger:      log,
		Auth:        authSvc,
		Projects:    project.New(repo, resolver, hub, log),
		Members:     member.New(repo, log),
		Allocations: allocation.New(repo, repo, repo, resolver, hub, log),
		Reports:     report.New(repo, log),
		Hub:         hub,
		Limiter:     newLimiter(ctx, cfg.RateLimit, log),
		Limits: httpx.RateLimits{
			Read:   cfg.RateLimit.Read,
			Write:  cfg.RateLimit.Write,
			Window: cfg.RateLimit.Window,
		},
		DBHealth: pool.Ping,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func newLimiter(ctx context.Context, cfg config.RateLimitConfig, log *slog.Logger) httpx.RateLimiter {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return httpx.NewMemoryRateLimiter()
	}
	limiter, err := httpx.NewRedisRateLimiter(ctx, cfg, log)
	if err != nil {
		log.Warn("redis rate limiter unavailable, using in-memory limiter", "error", err)
		return httpx.NewMemoryRateLimiter()
	}
	return limiter
}
