package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/events"
	"github.com/mattjoyce/hookgate/internal/handlers"
	"github.com/mattjoyce/hookgate/internal/lock"
	"github.com/mattjoyce/hookgate/internal/log"
	"github.com/mattjoyce/hookgate/internal/metrics"
	"github.com/mattjoyce/hookgate/internal/server"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath(cmd))
		},
	}
}

func runServe(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("hookgate starting", "version", currentVersionInfo().Version, "config", path)

	if cfg.Service.PIDFile != "" {
		pidLock, err := lock.Acquire(cfg.Service.PIDFile)
		if err != nil {
			return err
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	registry, err := handlers.Build(cfg.Handlers, log.WithComponent("handlers"))
	if err != nil {
		return err
	}
	for _, kind := range registry.Kinds() {
		logger.Info("handlers registered", "event", kind.String(), "count", registry.Len(kind))
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)
	hub := events.NewHub(cfg.Server.EventsBuffer)

	dispatcher := webhook.NewDispatcher([]byte(cfg.Secret), registry,
		webhook.WithLogger(log.WithComponent("webhook")),
		webhook.WithObserver(webhook.Observers{m, events.NewFeed(hub)}),
		webhook.WithMaxBodySize(int64(cfg.Server.MaxBodySize)),
	)

	srv := server.New(cfg.Server, dispatcher, log.WithComponent("server"),
		server.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
		server.WithEventsHandler(events.NewHandler(hub, m.SSEClients)),
	)

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("hookgate stopped")
	return nil
}
