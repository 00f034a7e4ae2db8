package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonathan/autopublisher/internal/content"
	"github.com/jonathan/autopublisher/internal/workflow"
)

var (
	workerName        string
	workerConcurrency int
	workerMetricsPort int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the workflow worker pool",
	Long:  "Consume queued workflows, generate their content and publish to the requested platforms.",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerName, "name", "", "Consumer name, unique per worker process (default: hostname)")
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Concurrent workflows (default from MAX_CONCURRENT_TASKS)")
	workerCmd.Flags().IntVar(&workerMetricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	broker, err := openBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close() //nolint:errcheck

	publicationLog, err := openPublicationLog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if publicationLog != nil {
		defer publicationLog.Close()
	}

	generator, closeGenerator, err := content.NewGenerator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create content generator: %w", err)
	}
	defer closeGenerator() //nolint:errcheck

	runner := workflow.NewRunner(generator, newPublishingService(cfg, logger, publicationLog), logger)

	name := workerName
	if name == "" {
		if host, err := os.Hostname(); err == nil {
			name = host
		}
	}
	concurrency := workerConcurrency
	if concurrency <= 0 {
		concurrency = cfg.MaxConcurrentTasks
	}
	workerCfg := workflow.DefaultWorkerConfig()
	workerCfg.Name = name
	workerCfg.Concurrency = concurrency
	workerCfg.TaskTimeout = cfg.TaskTimeout()

	if workerMetricsPort > 0 {
		stopMetrics := serveMetrics(workerMetricsPort, logger.Error)
		defer stopMetrics()
	}

	return workflow.NewWorker(broker, runner, workerCfg, logger).Run(ctx)
}

// serveMetrics exposes /metrics until the returned function is called.
func serveMetrics(port int, logError func(msg string, args ...any)) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logError("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
