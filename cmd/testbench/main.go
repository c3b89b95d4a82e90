package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/app/migrate"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/app/seed"
	httpx "github.com/nmi-davidmadrigal/USAePay-TestBench/internal/http"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository/postgres"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/preset"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/proxy"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/scenario"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/soapops"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/session"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/ws"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/config"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("testbench", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	if err := seed.Ensure(ctx, repo, log); err != nil {
		log.Error("system preset seeding failed", "error", err)
		os.Exit(1)
	}

	var sessions *session.Store
	if addr := strings.TrimSpace(cfg.SessionRedisAddr); addr != "" {
		sessions, err = session.NewStore(addr, cfg.SessionRedisPass, cfg.SessionRedisDB, cfg.SessionSecretKey, cfg.SessionTTL, log)
		if err != nil {
			log.Warn("session store unavailable, session overrides disabled", "error", err)
			sessions = nil
		} else {
			defer sessions.Close()
		}
	}

	hub := ws.NewHub()

	proxySvc := proxy.New(cfg, sessions, log)
	presetSvc := preset.New(repo, log)
	scenarioSvc := scenario.New(repo, proxySvc, hub, log)
	soapSvc := soapops.New(proxySvc, sessions, cfg, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, presetSvc, scenarioSvc, soapSvc, sessions, hub, limiter, cfg.SessionTokenSecret, cfg.SessionTTL, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("testbench server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("testbench server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
