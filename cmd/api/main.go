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
	"cipcagent/internal/domain"
	"cipcagent/internal/httpserver"
	"cipcagent/internal/logging"
	"cipcagent/internal/magiclink"
	"cipcagent/internal/observability"
	"cipcagent/internal/session"
	"cipcagent/internal/store/pg"
)

func main() {
	cfg, err := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observability.Register(prometheus.DefaultRegisterer)

	var (
		repo   magiclink.Repository
		checks []httpserver.ReadyzCheck
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := bootstrap.Postgres(ctx, cfg.StoreConfig)
		if err != nil {
			slog.Error("api db init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = pg.NewTokenRepository(db)
		checks = append(checks, httpserver.ReadyzCheck{Name: "postgres", Check: db.Ping})
	default:
		slog.Warn("using in-memory token store; tokens do not survive restarts or span replicas")
		repo = magiclink.NewMemoryRepository()
	}

	dispatcher, err := bootstrap.Dispatcher(cfg.ChannelConfig)
	if err != nil {
		slog.Error("channel init failed", "err", err)
		os.Exit(1)
	}

	tokens := magiclink.NewTokenStore(repo)
	tokens.TTL = cfg.MagicLinkTTL

	svc := &magiclink.Service{
		Tokens:   tokens,
		Delivery: dispatcher,
		Sessions: session.NewIssuer(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL),
		BaseURL:  cfg.AppBaseURL,
	}

	producer, _, err := bootstrap.Outbox(ctx, cfg.OutboxConfig)
	if err != nil {
		slog.Error("outbox init failed", "err", err)
		os.Exit(1)
	}
	if producer != nil {
		svc.Outbox = producer
		slog.Info("delivery outbox enabled", "queue_url", cfg.OutboxQueueURL)
	}

	sweeper := &magiclink.Sweeper{Repo: repo, Interval: cfg.SweepInterval, Retention: cfg.SweepRetention}
	go sweeper.Run(ctx)

	s := httpserver.New()
	s.Mux.Use(httpserver.Metrics(observability.HTTPRequests))
	s.Mux.Handle("/readyz", httpserver.Readyz(2*time.Second, checks...)).Methods(http.MethodGet)
	(&httpserver.Auth{Svc: svc}).Register(s.Mux)
	if dispatcher.Supports(domain.ChannelTelegram) {
		bot := &httpserver.TelegramBot{Svc: svc, Reply: dispatcher, Secret: cfg.TelegramWebhookSecret}
		bot.Register(s.Mux)
		if cfg.TelegramWebhookSecret == "" {
			slog.Warn("telegram webhook has no secret token; any caller can post updates")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.RequestID(httpserver.Logging(s.Mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
