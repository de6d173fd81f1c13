package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/adapters"
	"github.com/skyfare/flightsearch/internal/adapters/resthttp"
	"github.com/skyfare/flightsearch/internal/adapters/synthetic"
	"github.com/skyfare/flightsearch/internal/api"
	"github.com/skyfare/flightsearch/internal/archive"
	gcsarchive "github.com/skyfare/flightsearch/internal/archive/gcs"
	pgarchive "github.com/skyfare/flightsearch/internal/archive/postgres"
	pubsubarchive "github.com/skyfare/flightsearch/internal/archive/pubsub"
	"github.com/skyfare/flightsearch/internal/cache"
	"github.com/skyfare/flightsearch/internal/clock/system"
	"github.com/skyfare/flightsearch/internal/config"
	"github.com/skyfare/flightsearch/internal/flights"
	"github.com/skyfare/flightsearch/internal/id/uuid"
	"github.com/skyfare/flightsearch/internal/logging"
	"github.com/skyfare/flightsearch/internal/metrics"
	"github.com/skyfare/flightsearch/internal/notify"
	"github.com/skyfare/flightsearch/internal/orchestrator"
	"github.com/skyfare/flightsearch/internal/telemetry"
	"github.com/skyfare/flightsearch/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clk := system.New()
	idGen := uuid.New()

	tp, err := telemetry.Init(ctx, "flightsearch")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("trace provider shutdown", zap.Error(err))
		}
	}()

	registry := adapters.NewRegistry(logger)
	if err := registerAdapters(registry, cfg); err != nil {
		return fmt.Errorf("register adapters: %w", err)
	}
	logger.Info("adapters registered", zap.Strings("sources", registry.IDs()))

	reg := prometheus.NewRegistry()
	searchMetrics, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	trk := tracker.New(clk)
	resultCache := cache.New(cache.Config{
		MaxEntries:    cfg.Cache.MaxEntries,
		SweepInterval: time.Duration(cfg.Cache.SweepIntervalSeconds) * time.Second,
		Logger:        logger,
	}, clk)
	publisher := notify.NewPublisher(notify.Config{Logger: logger})
	defer publisher.Close()

	archiver, cleanup, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init archiver: %w", err)
	}
	defer cleanup()

	orch := orchestrator.New(
		registry, trk, resultCache, publisher, archiver, searchMetrics,
		clk, idGen,
		orchestrator.Options{
			MaxConcurrentSearches: cfg.Search.MaxConcurrent,
			SourceTimeout:         cfg.SourceTimeout(),
			CacheTTL:              cfg.CacheTTL(),
		},
		logger,
	)

	go resultCache.Run(ctx)
	go sweepLoop(ctx, trk, cfg.Retention(), logger)
	go probeLoop(ctx, registry, time.Duration(cfg.Search.HealthProbeSeconds)*time.Second)
	go dropReportLoop(ctx, publisher, searchMetrics)

	server := api.NewServer(orch, publisher, reg, cfg, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func registerAdapters(registry *adapters.Registry, cfg config.Config) error {
	for name, ac := range cfg.Adapters {
		var (
			adapter flights.Adapter
			err     error
		)
		switch ac.Kind {
		case "rest":
			adapter, err = resthttp.New(name, resthttp.Config{
				BaseURL: ac.BaseURL,
				APIKey:  ac.APIKey,
				RPS:     ac.RPS,
				Burst:   ac.Burst,
				Timeout: time.Duration(ac.TimeoutSeconds) * time.Second,
			})
		case "synthetic":
			adapter = synthetic.New(name, synthetic.Config{Seed: ac.Seed})
		default:
			err = fmt.Errorf("unknown adapter kind %q", ac.Kind)
		}
		if err != nil {
			return fmt.Errorf("adapter %s: %w", name, err)
		}
		if err := registry.Register(adapter); err != nil {
			return fmt.Errorf("adapter %s: %w", name, err)
		}
	}
	return nil
}

// buildArchiver assembles the configured archive sinks. Terminal-event
// pub/sub publishing is layered on top of whichever storage provider is
// selected.
func buildArchiver(ctx context.Context, cfg config.Config, logger *zap.Logger) (flights.Archiver, func(), error) {
	var (
		sinks    []flights.Archiver
		cleanups []func()
	)
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	switch cfg.Archive.Provider {
	case "", "none", "noop":
	case "postgres":
		archiver, pool, err := pgarchive.Connect(ctx, cfg.Archive.DSN)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, pool.Close)
		sinks = append(sinks, archiver)
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		archiver, err := gcsarchive.New(client, gcsarchive.Config{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, cleanup, err
		}
		sinks = append(sinks, archiver)
	default:
		return nil, cleanup, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		topic := client.Topic(cfg.PubSub.TopicName)
		cleanups = append(cleanups, topic.Stop)
		sinks = append(sinks, pubsubarchive.New(topic))
	}

	if len(sinks) == 0 {
		logger.Info("archiving disabled")
		return nil, cleanup, nil
	}
	return archive.NewMulti(sinks...), cleanup, nil
}

// sweepLoop evicts terminal search records past the retention window.
func sweepLoop(ctx context.Context, trk *tracker.Tracker, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(retention / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := trk.Sweep(retention); n > 0 {
				logger.Debug("swept search records", zap.Int("count", n))
			}
		}
	}
}

// dropReportLoop drains the publisher's drop counter into the metrics.
func dropReportLoop(ctx context.Context, publisher *notify.Publisher, m *metrics.SearchMetrics) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EventsDropped(publisher.Dropped())
		}
	}
}

// probeLoop refreshes adapter reachability in the background.
func probeLoop(ctx context.Context, registry *adapters.Registry, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	registry.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Probe(ctx)
		}
	}
}
