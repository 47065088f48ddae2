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

	"expense-guard/internal/auth"
	"expense-guard/internal/config"
	"expense-guard/internal/handlers"
	"expense-guard/internal/ledger"
	"expense-guard/internal/log"
	"expense-guard/internal/mail"
	"expense-guard/internal/storage"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config.LoadEnvFile()
	cfg := config.Load()

	logger := log.New(log.Config{Level: cfg.LogLevel, Component: log.ComponentApp, Output: os.Stdout})
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := storage.Open(ctx, storage.OptionsFrom(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info("database ready", "driver", db.Driver())

	sender, err := mail.New(cfg)
	if err != nil {
		return fmt.Errorf("configure mail: %w", err)
	}

	authSvc := auth.NewService(db, sender, logger, auth.Options{
		AppName:     cfg.AppName,
		HashCost:    cfg.OTPHashCost,
		DBTimeout:   cfg.DBTimeout,
		MailTimeout: cfg.MailTimeout,
	})
	ledgerSvc := ledger.NewService(db, logger, cfg.DBTimeout, nil)
	h := handlers.NewHandlers(db, authSvc, ledgerSvc, logger, handlers.Options{
		SecureCookie:    cfg.SecureCookie,
		SessionDuration: cfg.SessionTTL,
		DefaultBudget:   cfg.DefaultBudget,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        log.Middleware(logger.WithComponent(log.ComponentHTTP))(setupRouter(h)),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Port, "mail_transport", cfg.MailTransport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		cleanupLoop(gctx, db, cfg.CleanupInterval, logger.WithComponent(log.ComponentWorker))
		return nil
	})

	return g.Wait()
}

func setupRouter(h *handlers.Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	authed := func(f http.HandlerFunc) http.Handler { return h.AuthMiddleware(f) }

	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("POST /api/auth/challenge", h.RequestChallenge)
	mux.HandleFunc("POST /api/auth/verify", h.Verify)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.Handle("GET /api/me", authed(h.Me))

	mux.Handle("GET /api/expenses", authed(h.ListExpenses))
	mux.Handle("POST /api/expenses", authed(h.CreateExpense))
	mux.Handle("GET /api/expenses/export.csv", authed(h.ExportCSV))
	mux.Handle("DELETE /api/expenses/current-month", authed(h.DeleteCurrentMonth))
	mux.Handle("GET /api/expenses/{id}", authed(h.GetExpense))
	mux.Handle("PUT /api/expenses/{id}", authed(h.UpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", authed(h.DeleteExpense))

	mux.Handle("GET /api/reports/overview", authed(h.Overview))
	mux.Handle("GET /api/reports/categories", authed(h.Categories))
	mux.Handle("GET /api/reports/monthly", authed(h.Monthly))
	mux.Handle("GET /api/reports/daily", authed(h.Daily))

	mux.Handle("GET /api/settings/budget", authed(h.GetBudget))
	mux.Handle("PUT /api/settings/budget", authed(h.SetBudget))

	return mux
}

// cleaner is the storage the cleanup loop prunes.
type cleaner interface {
	CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	PurgeChallenges(ctx context.Context, cutoff time.Time) (int64, error)
}

// cleanupLoop removes expired sessions and challenges every interval until
// ctx is done.
func cleanupLoop(ctx context.Context, db cleaner, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cleanup(ctx, db, time.Now(), logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func cleanup(ctx context.Context, db cleaner, now time.Time, logger *log.Logger) {
	sessions, err := db.CleanExpiredSessions(ctx, now)
	if err != nil {
		if ctx.Err() == nil {
			logger.Err(ctx, log.OpCleanup, err, "table", "sessions")
		}
		return
	}
	challenges, err := db.PurgeChallenges(ctx, now.Add(-auth.ChallengeTTL))
	if err != nil {
		if ctx.Err() == nil {
			logger.Err(ctx, log.OpCleanup, err, "table", "otp_verification")
		}
		return
	}
	if sessions > 0 || challenges > 0 {
		logger.Info("expired rows removed", "sessions", sessions, "challenges", challenges)
	}
}
