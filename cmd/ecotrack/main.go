package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecotrackhq/ecotrack/internal/config"
	"github.com/ecotrackhq/ecotrack/internal/database"
	"github.com/ecotrackhq/ecotrack/internal/logging"
	"github.com/ecotrackhq/ecotrack/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Periodic cleanup of expired sessions, codes, and rate-limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("delete expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("deleted expired sessions", "count", n)
				}
				if n, err := srv.VerificationCodeStore().DeleteExpired(); err != nil {
					logger.Error("delete expired codes", "error", err)
				} else if n > 0 {
					logger.Info("deleted expired verification codes", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
