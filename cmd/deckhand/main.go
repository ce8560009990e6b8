package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"deckhand"
	"deckhand/internal/config"
	"deckhand/internal/dashboard"
	"deckhand/internal/gateway"
	"deckhand/internal/prefs"
	"deckhand/internal/web"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     deckhand.AppName,
		Short:   "Live container dashboard synchronizer",
		Version: deckhand.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	store, err := prefs.Open(filepath.Join(cfg.DataDir, "prefs.db"))
	if err != nil {
		return fmt.Errorf("open prefs store: %w", err)
	}
	defer store.Close()

	client, err := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.BackendURL,
		PushURL:       cfg.PushURL,
		Timeout:       cfg.Timeout,
		MaxReconnects: cfg.MaxReconnects,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.CheckBackend(ctx); err != nil {
		logger.Warn("Backend check failed", "err", err)
	}

	sortField, _ := dashboard.ParseSortField(store.Get(prefs.KeySortField, string(dashboard.SortName)))
	session := dashboard.NewSession(dashboard.Options{
		Gateway:      client,
		Logger:       logger,
		PullInterval: cfg.PullInterval,
		SortField:    sortField,
		SortDir:      dashboard.SortDir(store.Get(prefs.KeySortDir, string(dashboard.SortAsc))),
		Mode:         dashboard.ViewMode(store.Get(prefs.KeyViewMode, string(dashboard.ModeList))),
		OnPrefsChange: func(field dashboard.SortField, dir dashboard.SortDir, mode dashboard.ViewMode) {
			_ = store.Set(prefs.KeySortField, string(field))
			_ = store.Set(prefs.KeySortDir, string(dir))
			_ = store.Set(prefs.KeyViewMode, string(mode))
		},
	})

	client.StartPush(ctx)
	go session.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: web.NewServer(session, logger).Routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting "+deckhand.AppName, "version", deckhand.Version, "listen", cfg.Listen, "backend", cfg.BackendURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-session.Done()
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
