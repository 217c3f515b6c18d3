package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tracelens/rootgraph/internal/api"
	"github.com/tracelens/rootgraph/internal/cluster"
	"github.com/tracelens/rootgraph/internal/config"
	"github.com/tracelens/rootgraph/internal/metrics"
	"github.com/tracelens/rootgraph/internal/repo"
	"github.com/tracelens/rootgraph/internal/service"
	"github.com/tracelens/rootgraph/internal/sim"
	"github.com/tracelens/rootgraph/internal/store"
	"github.com/tracelens/rootgraph/internal/transform"
	"github.com/tracelens/rootgraph/internal/utils"
	"github.com/tracelens/rootgraph/internal/view"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting graph-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var source service.TraceSource
	if cfg.Telemetry.BaseURL != "" {
		source = repo.NewTelemetryClient(cfg.Telemetry.BaseURL, cfg.Telemetry.TracesPath, cfg.Telemetry.Timeout)
	} else {
		logger.Warn("no telemetry backend configured, only inline trace payloads will be accepted")
	}

	advisor, err := cluster.NewAdviceEngine(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load advice rules", slog.Any("error", err))
		os.Exit(1)
	}

	sessions := store.NewMemoryStore(cfg.Sessions.TTL, clock.New(), service.StopSession)

	simCfg := sim.DefaultConfig()
	if cfg.Layout.TickRate > 0 {
		simCfg.TickRate = cfg.Layout.TickRate
	}
	if cfg.Layout.Budget > 0 {
		simCfg.Budget = cfg.Layout.Budget
	}

	graphService := service.NewGraphService(
		logger,
		source,
		transform.NewTransformer(logger, transform.DefaultConfig()),
		cluster.NewDetector(logger, cluster.DefaultConfig()),
		advisor,
		sessions,
		service.Config{
			CanvasWidth:   cfg.Graph.CanvasWidth,
			CanvasHeight:  cfg.Graph.CanvasHeight,
			PlaybackSpeed: cfg.Graph.PlaybackSpeed,
		},
		simCfg,
		view.DefaultConfig(),
		clock.New(),
	)

	handlers := api.NewHandlers(logger, graphService, cfg.Stream)
	server, err := api.NewServer(cfg.Server, handlers.Router())
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx, cfg.Sessions.SweepInterval)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("graph-engine stopped")
}
