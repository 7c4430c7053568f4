// Package bootstrap turns loaded configuration into the collaborators the
// binaries share: channel senders, the Postgres pool and the outbox producer.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"cipcagent/internal/awsutil"
	"cipcagent/internal/channel"
	"cipcagent/internal/config"
	"cipcagent/internal/domain"
	"cipcagent/internal/providers/resend"
	"cipcagent/internal/providers/telegram"
	"cipcagent/internal/providers/whatsapp"
	sqsqueue "cipcagent/internal/queue/sqs"
	"cipcagent/internal/store/pg"
)

// Dispatcher builds one rate-limited, breaker-guarded sender per enabled
// channel.
func Dispatcher(cfg config.ChannelConfig) (*channel.Dispatcher, error) {
	chs, err := cfg.Enabled()
	if err != nil {
		return nil, err
	}
	senders := make(map[domain.Channel]channel.Sender, len(chs))
	for _, ch := range chs {
		var s channel.Sender
		switch ch {
		case domain.ChannelWhatsApp:
			s = whatsapp.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
		case domain.ChannelTelegram:
			tg := telegram.New(cfg.TelegramBotToken)
			if cfg.TelegramBaseURL != "" {
				tg.BaseURL = cfg.TelegramBaseURL
			}
			s = tg
		case domain.ChannelEmail:
			rs := resend.New(cfg.ResendAPIKey, cfg.EmailFrom)
			if cfg.ResendBaseURL != "" {
				rs.BaseURL = cfg.ResendBaseURL
			}
			s = rs
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedChannel, ch)
		}
		senders[ch] = channel.NewResilient(string(ch), s, cfg.ChannelRPS, cfg.ChannelBurst)
	}
	d := channel.NewDispatcher(senders)
	slog.Info("delivery channels configured", "channels", d.Channels())
	return d, nil
}

// Postgres opens the pool and, unless disabled, applies pending migrations.
func Postgres(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	if cfg.DBMigrate {
		if err := pg.RunMigrations(cfg.DBDSN); err != nil {
			return nil, err
		}
	}
	return pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	})
}

// Outbox returns nil, nil, nil when OUTBOX_QUEUE_URL is unset.
func Outbox(ctx context.Context, cfg config.OutboxConfig) (*sqsqueue.Producer, *sqs.Client, error) {
	if !cfg.Enabled() {
		return nil, nil, nil
	}
	client, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("sqs client: %w", err)
	}
	return &sqsqueue.Producer{SQS: client, QueueURL: cfg.OutboxQueueURL}, client, nil
}
