package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/bootstrap"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/config"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/observability/logging"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/observability/metrics"
)

const serviceName = "screening-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Progress: func(processed, total int) {
			slog.Info("batch_progress", "processed", processed, "total", total)
		},
		OnChunk: func(stage domain.Stage, elapsed time.Duration) {
			workerMetrics.ObserveChunk(serviceName, string(stage), elapsed)
		},
		OnCredentialAttempt: func(attempt, total int) {
			workerMetrics.RecordCredentialAttempt(serviceName)
			slog.Debug("classification_attempt", "attempt", attempt, "total", total)
		},
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeScreeningRequested(ctx, func(handlerCtx context.Context, job domain.ScreeningJob) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		start := time.Now()
		workerMetrics.StartBatchRun()
		result, err := app.BatchUC.Run(runCtx, job.Stage, job.BatchSize)
		workerMetrics.FinishBatchRun(serviceName, string(job.Stage), time.Since(start), err)
		if err != nil {
			if domain.IsKind(err, domain.ErrQuotaExhausted) {
				workerMetrics.RecordQuotaFailure(serviceName, string(job.Stage))
			}
			return err
		}

		for _, d := range result.AppliedDecisions() {
			workerMetrics.RecordDecision(serviceName, string(job.Stage), string(d.Decision))
		}
		slog.Info("batch_run_complete",
			"stage", result.Stage,
			"total", result.Total,
			"processed", result.Processed,
			"succeeded", result.Succeeded,
			"errored", result.Errored,
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
