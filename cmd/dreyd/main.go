package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/dreyhq/drey/internal/config"
	"github.com/dreyhq/drey/internal/coordinator"
	"github.com/dreyhq/drey/internal/httpapi"
	"github.com/dreyhq/drey/internal/ingest"
	"github.com/dreyhq/drey/internal/logging"
	"github.com/dreyhq/drey/internal/metrics"
	dreysignal "github.com/dreyhq/drey/internal/signal"
	"github.com/dreyhq/drey/internal/store"
)

func main() {
	configPath := flag.String("config", "drey.yml", "path to the drey configuration file")
	flag.Parse()

	logger := logging.New()

	// 1. Load and validate configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	// 2. Connect the store and verify Redis connectivity
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid redis_url: %v\n", err)
		os.Exit(1)
	}
	st, err := store.New(redisOpts, cfg.Instance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 3. Metrics registry shared by the whole pipeline
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// 4. Ingestion: verifier, queue, gateway
	verifier := ingest.NewVerifier(cfg.SigningSecret, cfg.Thresholds.ReplayWindow(), nil)
	queue := ingest.NewQueue(cfg.Queue.Partitions, cfg.Queue.Depth, m, logging.WithComponent(logger, "queue"))
	gateway := ingest.NewGateway(verifier, st, queue, m, logging.WithComponent(logger, "gateway"))

	// 5. Processing: analyzer, engine, detector, sinks, processor
	analyzer := dreysignal.NewKeywordAnalyzer()
	engine := coordinator.NewEngine(cfg.Thresholds, nil)
	detector := coordinator.NewDetector(cfg.GapDetection, cfg.Thresholds.OwnershipTimeout(), st, logging.WithComponent(logger, "gaps"), nil)
	sinks := []coordinator.DecisionSink{
		coordinator.NewLogSink(logging.WithComponent(logger, "decisions")),
		coordinator.NewPublishSink(st),
	}
	processor := coordinator.NewProcessor(st, analyzer, engine, detector, sinks, m,
		logging.WithComponent(logger, "processor"), cfg.Extraction.Timeout, nil)

	// 6. HTTP surface
	server := httpapi.NewServer(cfg.ListenAddr, gateway, st, registry, logging.WithComponent(logger, "httpapi"))

	logger.WithFields(logging.Fields{
		"instance":   cfg.Instance,
		"listen":     cfg.ListenAddr,
		"partitions": cfg.Queue.Partitions,
	}).Info("Drey daemon starting")

	// 7. Graceful shutdown on SIGINT/SIGTERM
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	}()

	// 8. Run the queue consumers and the HTTP server until shutdown. The
	// queue drains buffered events before stopping.
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(runCtx, processor.Process)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(runCtx); err != nil {
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	default:
	}
	logger.Info("Drey daemon stopped")
}
