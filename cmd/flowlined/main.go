// Command flowlined runs a flowline worker daemon: it executes shell and
// http jobs from a sqlite-backed queue and serves prometheus metrics.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mdekker/flowline"
	"github.com/mdekker/flowline/pkg/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel)

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", cfg.DatabasePath, err)
	}

	store := flowline.NewGormStore(db)
	if err := store.Migrate(rootCtx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	eng := flowline.New(store)
	registerBuiltinHandlers(eng, cfg)
	metrics.Observe(eng)

	go serveMetrics(cfg.MetricsAddr)

	opts := []flowline.WorkerOption{
		flowline.PollInterval(cfg.PollInterval),
		flowline.WithScheduler(true),
	}
	for _, q := range cfg.Queues {
		opts = append(opts, flowline.WorkerQueue(q))
	}
	opts = append(opts, flowline.Concurrency(cfg.Concurrency))
	if cfg.Exclusive {
		opts = append(opts, flowline.Exclusive())
	}
	if cfg.StaleLockSweep > 0 {
		opts = append(opts, flowline.StaleLockSweep(cfg.StaleLockSweep))
	}

	w := flowline.NewWorker(eng, opts...)

	slog.Info("flowlined started",
		"database", cfg.DatabasePath,
		"queues", cfg.Queues,
		"concurrency", cfg.Concurrency,
		"exclusive", cfg.Exclusive,
	)

	if err := w.Start(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Worker exited: %v", err)
	}

	slog.Info("flowlined shut down")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()
}
