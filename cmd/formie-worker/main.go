// Package main runs the Formie delivery worker: it consumes queued send jobs
// from NATS JetStream, runs each through the delivery pipeline, and exposes
// metrics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/extreme-creations/formie/config"
	"github.com/extreme-creations/formie/deliverylog"
	"github.com/extreme-creations/formie/health"
	"github.com/extreme-creations/formie/mapping"
	"github.com/extreme-creations/formie/metric"
	"github.com/extreme-creations/formie/pipeline"
	"github.com/extreme-creations/formie/projector"
	"github.com/extreme-creations/formie/queue"
	"github.com/extreme-creations/formie/submission"
)

var (
	// Version information (set by build)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "formie.json", "Path to config file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("formie-worker %s (%s)\n", version, commit)
		return
	}

	// .env is optional; deployment environments set real variables
	_ = godotenv.Load()

	logger := setupLogger(*verbose)

	if err := run(*configPath, logger); err != nil {
		logger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	safeCfg := config.NewSafeConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// NATS connection
	opts := []nats.Option{
		nats.Name(cfg.AppName),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, nats.Token(cfg.NATS.Token))
	} else if cfg.NATS.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password))
	}

	nc, err := nats.Connect(cfg.NATS.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Drain()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create jetstream context: %w", err)
	}

	// Delivery log in a KV bucket
	bucket, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.LogBucket,
		Description: "Formie integration delivery log",
	})
	if err != nil {
		return fmt.Errorf("create delivery log bucket: %w", err)
	}
	logStore := deliverylog.NewKVStore(bucket)

	// Metrics
	metrics := metric.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Delivery pipeline
	resolver := mapping.NewResolver(projector.New(cfg.Location()), nil, logger)
	transport := pipeline.NewHTTPTransport(0)
	pipe := pipeline.New(resolver, transport, logStore,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithAssembler(pipeline.CategoryAssembler),
	)

	// Submission store. The in-memory store serves until submissions are
	// published alongside jobs; a CMS-backed store plugs in here.
	submissions := submission.NewMemoryStore()

	worker, err := queue.NewWorker(js, submissions, safeCfg, pipe, cfg.Queue,
		queue.WithWorkerLogger(logger),
		queue.WithWorkerMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer func() {
		if err := worker.Stop(); err != nil {
			logger.Warn("worker stop", "error", err)
		}
	}()

	// Health monitoring
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("worker", "consuming")
	go watchConnection(ctx, nc, monitor)

	// Operational HTTP listener
	mux := http.NewServeMux()
	mux.Handle("/metrics", metric.Handler(registry))
	mux.Handle("/healthz", monitor.Handler(cfg.AppName))

	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listener started", "addr", cfg.HTTP.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("formie delivery worker running",
		"version", version,
		"integrations", len(cfg.Integrations),
		"stream", cfg.Queue.StreamName)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http listener: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	return nil
}

// watchConnection mirrors the NATS connection state into the health monitor.
func watchConnection(ctx context.Context, nc *nats.Conn, monitor *health.Monitor) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch {
			case nc.IsConnected():
				monitor.UpdateHealthy("nats", "connected")
			case nc.IsReconnecting():
				monitor.UpdateDegraded("nats", "reconnecting")
			default:
				monitor.UpdateUnhealthy("nats", "disconnected")
			}
		}
	}
}
