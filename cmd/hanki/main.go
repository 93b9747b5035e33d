package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hanki/internal/config"
	"hanki/internal/database"
	"hanki/internal/logging"
	"hanki/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	var (
		db  *sql.DB
		err error
	)
	if cfg.LocalOnly() {
		logger.Warn("no database path configured, running in-memory; data is lost on restart")
		db, err = database.OpenMemory()
	} else {
		db, err = database.Open(cfg.DBPath)
	}
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
		logger.Warn("VAPID keys not configured, push reminders will not be delivered")
	}

	srv := server.New(cfg, db, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.Scanner().Start(ctx)
	srv.Reminders().Start(ctx)
	srv.BackupManager().Start(ctx)
	go sessionCleanup(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("hanki listening", "port", cfg.Port, "local_only", cfg.LocalOnly())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	srv.Scanner().Stop()
	srv.Reminders().Stop()
	srv.BackupManager().Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// sessionCleanup prunes expired sessions and stale rate-limit entries.
func sessionCleanup(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("session cleanup", "error", err)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}
