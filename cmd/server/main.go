package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-ledger/internal/account"
	"finance-ledger/internal/auth"
	"finance-ledger/internal/config"
	"finance-ledger/internal/handlers"
	"finance-ledger/internal/ledger"
	"finance-ledger/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	users, err := db.UserCount(context.Background())
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	logger.Info("database ready", "path", cfg.DBPath, "users", users)

	h := newHandlers(db, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanSessions(ctx, db, cfg.SessionCleanupInterval, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "db", cfg.DBPath)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newHandlers(db *storage.DB, cfg *config.Config, logger *slog.Logger) *handlers.Handlers {
	gate := auth.NewGate(db, cfg.SessionTTL, logger)
	engine := ledger.NewEngine(db)
	accounts := account.NewService(db, cfg.SessionTTL, cfg.BcryptCost)
	return handlers.NewHandlers(gate, engine, accounts, logger)
}

func setupRouter(h *handlers.Handlers) http.Handler {
	return h.Routes()
}

// cleanSessions deletes expired sessions every interval until ctx is done.
func cleanSessions(ctx context.Context, db *storage.DB, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := db.CleanExpiredSessions(ctx, now)
			if err != nil {
				logger.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
