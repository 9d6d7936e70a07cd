package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unrolled/secure"

	"github.com/PPRAMANIK62/e-commerce-modified/internal/app/migrate"
	httpx "github.com/PPRAMANIK62/e-commerce-modified/internal/http"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/repository/postgres"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/service/auth"
	"github.com/PPRAMANIK62/e-commerce-modified/internal/service/user"
	"github.com/PPRAMANIK62/e-commerce-modified/pkg/config"
	"github.com/PPRAMANIK62/e-commerce-modified/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("accounts", slog.LevelInfo)

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
	if cfg.AutoMigrate {
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("auto-migrate disabled, run the migrate command instead")
	}

	repo := postgres.New(pool)
	authSvc := auth.New(repo, log, cfg)
	userSvc := user.New(repo, log)

	router := httpx.NewRouter(log, authSvc, userSvc, cfg.IsProduction(), pool.Ping)

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           secureMiddleware.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
