package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cipcagent/internal/awsutil"
	"cipcagent/internal/bootstrap"
	"cipcagent/internal/config"
	"cipcagent/internal/domain"
	"cipcagent/internal/httpserver"
	"cipcagent/internal/logging"
	"cipcagent/internal/observability"
	sqsqueue "cipcagent/internal/queue/sqs"
	"cipcagent/internal/store/pg"
	"cipcagent/internal/worker"
	"cipcagent/internal/workflow"
)

func main() {
	cfg, err := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// Use a root ctx we can cancel
	ctx, cancel := context.WithCancel(context.Background())

	db, err := bootstrap.Postgres(ctx, cfg.StoreConfig)
	if err != nil {
		slog.Error("worker db init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	_, sqsClient, err := bootstrap.Outbox(ctx, cfg.OutboxConfig)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	queueCheck := awsutil.QueueProbe(sqsClient, cfg.OutboxQueueURL)

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := queueCheck(startupCtx); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	dispatcher, err := bootstrap.Dispatcher(cfg.ChannelConfig)
	if err != nil {
		slog.Error("channel init failed", "err", err)
		os.Exit(1)
	}

	consumer := &sqsqueue.Consumer{
		SQS:               sqsClient,
		QueueURL:          cfg.OutboxQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}
	processor := &worker.Processor{
		Ledger:   pg.NewLedger(db),
		Workflow: workflow.New(cfg.WorkflowBaseURL, cfg.WorkflowAPIKey, cfg.WorkflowTimeout),
		Delivery: dispatcher,
	}

	// health server (liveness + readiness + metrics)
	s := httpserver.New()
	s.Mux.Handle("/readyz", httpserver.Readyz(2*time.Second,
		httpserver.ReadyzCheck{Name: "postgres", Check: db.Ping},
		httpserver.ReadyzCheck{Name: "outbox", Check: queueCheck},
	)).Methods(http.MethodGet)

	healthSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.Logging(s.Mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.OutboxQueueURL, "concurrency", cfg.WorkerConcurrency)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, job domain.OutboxJob) error {
			start := time.Now()
			err := processor.Process(ctx, job)
			if err != nil {
				slog.Info("worker job finish", "job_id", job.ID, "kind", job.Kind, "status", "error", "duration", time.Since(start), "err", err)
				return err
			}
			slog.Info("worker job finish", "job_id", job.ID, "kind", job.Kind, "status", "ok", "duration", time.Since(start))
			return nil
		})
	}()

	// shutdown wiring
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
