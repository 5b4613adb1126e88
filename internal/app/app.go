// Package app wires the refresh engine, scheduler, notifier and HTTP surface together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"kimchi/internal/api"
	"kimchi/internal/config"
	"kimchi/internal/exchange"
	"kimchi/internal/model"
	"kimchi/internal/notify"
	"kimchi/internal/premium"
	"kimchi/internal/scheduler"
)

// App holds the running components.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	engine    *premium.Engine
	hub       *api.Hub
	notifier  *notify.Notifier
	scheduler *scheduler.Scheduler
	server    *http.Server
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log.format: %q", cfg.Format)
	}
}

// New assembles the application from configuration.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	client := exchange.NewHTTPClient(cfg.Sources.HTTPTimeout, cfg.Sources.UserAgent)
	sources, err := exchange.NewSources(logger, client, cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	engine := premium.NewEngine(logger, sources, premium.Standard{}, premium.EngineConfig{
		CycleTimeout:     cfg.Refresh.CycleTimeout,
		KeepStaleOnError: cfg.Refresh.KeepStaleOnError,
	})

	hub := api.NewHub(logger)
	engine.Subscribe(hub.PublishState)

	a := &App{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		hub:    hub,
	}

	if cfg.Notify.Enabled {
		var delivery notify.Delivery
		switch cfg.Notify.Delivery {
		case "websocket":
			delivery = hub
		default:
			delivery = notify.NewLogDelivery(logger)
		}
		a.notifier = notify.NewNotifier(logger, delivery)
		engine.Subscribe(a.notifier.Listener())
	}

	a.scheduler = scheduler.New(cfg.Refresh.Interval, a.refresh, logger)
	a.server = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(logger, engine, hub, cfg.Server).Handler(),
	}
	return a, nil
}

// Engine exposes the refresh engine.
func (a *App) Engine() *premium.Engine {
	return a.engine
}

func (a *App) refresh(ctx context.Context) {
	// Cycle failures live in the state; only caller cancellation is returned.
	if _, err := a.engine.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("Scheduled refresh interrupted", "error", err)
	}
}

// Run serves HTTP and runs the schedule until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.notifier != nil {
		go a.notifier.RequestPermission(ctx)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer a.scheduler.Cancel()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	a.logger.Info("Shutting down")
	a.scheduler.Cancel()
	a.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Once runs a single cycle and returns its state.
func (a *App) Once(ctx context.Context) (model.CycleState, error) {
	if a.notifier != nil {
		a.notifier.RequestPermission(ctx)
	}
	return a.engine.Refresh(ctx)
}
