package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/privacyanalyzer/privacyanalyzer/internal/app"
	"github.com/privacyanalyzer/privacyanalyzer/internal/config"
	"github.com/privacyanalyzer/privacyanalyzer/internal/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the crawl/analysis worker pool",
	Long:  "Drains the work queue, crawling and analyzing each job, up to WORKER_CONCURRENCY in parallel.",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(bootCtx, cfg)
	bootCancel()
	if err != nil {
		return err
	}
	defer application.Close()

	deps := map[string]metrics.Pinger{
		"postgres": application.Store,
		"redis":    metrics.RedisPinger{Client: application.RedisClient},
	}
	metricsServer := metrics.NewServer(fmt.Sprintf(":%d", cfg.Queue.MetricsPort), application.PromRegistry, application.Logger, deps)
	metricsServer.StartAsync()

	ctx, cancel := context.WithCancel(context.Background())
	application.Pool.Start(ctx)

	application.Logger.Info().
		Int("concurrency", cfg.Queue.WorkerConcurrency).
		Int("metrics_port", cfg.Queue.MetricsPort).
		Msg("worker pool ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	application.Logger.Info().Msg("worker pool shutting down, waiting for in-flight jobs")
	cancel()
	application.Pool.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Stop(shutdownCtx)

	return nil
}
