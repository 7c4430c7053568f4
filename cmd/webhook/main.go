package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cipcagent/internal/bootstrap"
	"cipcagent/internal/config"
	"cipcagent/internal/httpserver"
	"cipcagent/internal/logging"
	"cipcagent/internal/observability"
	"cipcagent/internal/payment"
	"cipcagent/internal/store/pg"
	"cipcagent/internal/workflow"
)

func main() {
	cfg, err := config.LoadWebhook()
	logging.Init("webhook", cfg.LogFormat)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observability.Register(prometheus.DefaultRegisterer)

	var (
		ledger payment.Ledger
		checks []httpserver.ReadyzCheck
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := bootstrap.Postgres(ctx, cfg.StoreConfig)
		if err != nil {
			slog.Error("webhook db init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		ledger = pg.NewLedger(db)
		checks = append(checks, httpserver.ReadyzCheck{Name: "postgres", Check: db.Ping})
	default:
		slog.Warn("using in-memory dispatch ledger; dedup does not survive restarts or span replicas")
		ledger = payment.NewMemoryLedger()
	}

	dispatcher, err := bootstrap.Dispatcher(cfg.ChannelConfig)
	if err != nil {
		slog.Error("channel init failed", "err", err)
		os.Exit(1)
	}

	proc := &payment.Processor{
		Secret:   cfg.PaymentSecret,
		Ledger:   ledger,
		Workflow: workflow.New(cfg.WorkflowBaseURL, cfg.WorkflowAPIKey, cfg.WorkflowTimeout),
		Notifier: dispatcher,
	}

	producer, _, err := bootstrap.Outbox(ctx, cfg.OutboxConfig)
	if err != nil {
		slog.Error("outbox init failed", "err", err)
		os.Exit(1)
	}
	if producer != nil {
		proc.Outbox = producer
		slog.Info("filing outbox enabled", "queue_url", cfg.OutboxQueueURL)
	}

	s := httpserver.New()
	s.Mux.Use(httpserver.Metrics(observability.HTTPRequests))
	s.Mux.Handle("/readyz", httpserver.Readyz(2*time.Second, checks...)).Methods(http.MethodGet)
	(&httpserver.Webhook{Processor: proc}).Register(s.Mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.RequestID(httpserver.Logging(s.Mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("webhook shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("webhook listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("webhook server failed", "err", err)
		os.Exit(1)
	}
}
