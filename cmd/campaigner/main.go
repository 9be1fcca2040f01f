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

	"github.com/joho/godotenv"

	"github.com/dmitrymomot/campaigner/internal/api"
	"github.com/dmitrymomot/campaigner/internal/config"
	"github.com/dmitrymomot/campaigner/internal/delivery"
	"github.com/dmitrymomot/campaigner/internal/gmail"
	"github.com/dmitrymomot/campaigner/internal/mailbox"
	"github.com/dmitrymomot/campaigner/internal/scheduler"
	"github.com/dmitrymomot/campaigner/internal/store"
	"github.com/dmitrymomot/campaigner/pkg/logger"
	"github.com/dmitrymomot/campaigner/pkg/vault"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger.WithComponent(log, "store"))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error("failed to close store", slog.Any("error", err))
		}
	}()

	v, err := vault.New(cfg.Vault.EncryptionKey)
	if err != nil {
		return err
	}

	gm, err := gmail.New(cfg.Gmail)
	if err != nil {
		return err
	}

	mailboxes := mailbox.NewManager(st.Users, v, mailbox.GmailProvider{Client: gm},
		logger.WithComponent(log, "mailbox"))

	loc, err := cfg.Quota.Location()
	if err != nil {
		return fmt.Errorf("quota timezone: %w", err)
	}
	quota := delivery.NewQuota(st.SendLog, cfg.Quota.DailyLimit, loc)
	orch := delivery.NewOrchestrator(st.Campaigns, st.Variables, st.SendLog, mailboxes, quota,
		logger.WithComponent(log, "delivery"))

	sched := scheduler.New(st.Campaigns, st.Users, orch, cfg.Scheduler.Interval, cfg.Scheduler.Batch,
		logger.WithComponent(log, "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	srv := api.NewServer(st, mailboxes, orch, quota, cfg.Auth.JWTSecret,
		logger.WithComponent(log, "api"))
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	// Let a running sweep finish before the process goes away.
	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
