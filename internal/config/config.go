package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"cipcagent/internal/domain"
)

// ChannelConfig holds provider credentials. A channel listed in CHANNELS must
// have its credentials set.
type ChannelConfig struct {
	Channels []string `envconfig:"CHANNELS" default:"whatsapp,telegram,email"`

	TwilioAccountSID   string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom string `envconfig:"TWILIO_WHATSAPP_FROM"` // "whatsapp:+14155238886"

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramBaseURL  string `envconfig:"TELEGRAM_BASE_URL" default:"https://api.telegram.org"`

	ResendAPIKey  string `envconfig:"RESEND_API_KEY"`
	ResendBaseURL string `envconfig:"RESEND_BASE_URL" default:"https://api.resend.com"`
	EmailFrom     string `envconfig:"EMAIL_FROM" default:"CIPC Agent <noreply@cipcagent.co.za>"`

	// per pod, per channel
	ChannelRPS   float64 `envconfig:"CHANNEL_RPS" default:"5"`
	ChannelBurst int     `envconfig:"CHANNEL_BURST" default:"10"`
}

// Enabled returns the parsed CHANNELS list.
func (c ChannelConfig) Enabled() ([]domain.Channel, error) {
	seen := map[domain.Channel]bool{}
	var out []domain.Channel
	for _, raw := range c.Channels {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ch, err := domain.ParseChannel(raw)
		if err != nil {
			return nil, fmt.Errorf("CHANNELS: %w: %q", err, raw)
		}
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out, nil
}

func (c ChannelConfig) Validate() error {
	chs, err := c.Enabled()
	if err != nil {
		return err
	}
	var errs []error
	for _, ch := range chs {
		switch ch {
		case domain.ChannelWhatsApp:
			if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioWhatsAppFrom == "" {
				errs = append(errs, errors.New("whatsapp enabled but TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN or TWILIO_WHATSAPP_FROM is missing"))
			}
		case domain.ChannelTelegram:
			if c.TelegramBotToken == "" {
				errs = append(errs, errors.New("telegram enabled but TELEGRAM_BOT_TOKEN is missing"))
			}
		case domain.ChannelEmail:
			if c.ResendAPIKey == "" || c.EmailFrom == "" {
				errs = append(errs, errors.New("email enabled but RESEND_API_KEY or EMAIL_FROM is missing"))
			}
		}
	}
	return errors.Join(errs...)
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"memory"`
	DBDSN   string `envconfig:"DB_DSN"`

	DBMaxConns          int32         `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBMinConns          int32         `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	DBMaxConnLifetime   time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME" default:"30m"`
	DBMaxConnIdleTime   time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME" default:"5m"`
	DBHealthCheckPeriod time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD" default:"30s"`
	DBMigrate           bool          `envconfig:"DB_MIGRATE" default:"true"`
}

func (s StoreConfig) Validate() error {
	switch s.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		if s.DBDSN == "" {
			return errors.New("STORE_BACKEND=postgres requires DB_DSN")
		}
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMemory, BackendPostgres, s.Backend)
	}
}

// OutboxConfig points at the SQS queue used for deferred retries. An empty
// OUTBOX_QUEUE_URL disables the outbox.
type OutboxConfig struct {
	AWSRegion          string `envconfig:"AWS_REGION" default:"af-south-1"`
	OutboxQueueURL     string `envconfig:"OUTBOX_QUEUE_URL"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

func (o OutboxConfig) Enabled() bool { return o.OutboxQueueURL != "" }

type APIConfig struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	AppBaseURL     string        `envconfig:"APP_BASE_URL" required:"true"`
	MagicLinkTTL   time.Duration `envconfig:"MAGIC_LINK_TTL" default:"24h"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	SweepRetention time.Duration `envconfig:"SWEEP_RETENTION" default:"24h"`

	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionIssuer string        `envconfig:"SESSION_ISSUER" default:"cipc-agent"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	// secret_token given to setWebhook; empty disables the header check
	TelegramWebhookSecret string `envconfig:"TELEGRAM_WEBHOOK_SECRET"`

	ChannelConfig
	StoreConfig
	OutboxConfig
}

type WebhookConfig struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// shared secret for payment notification signatures
	PaymentSecret string `envconfig:"PAYMENT_WEBHOOK_SECRET" required:"true"`

	WorkflowBaseURL string        `envconfig:"WORKFLOW_BASE_URL" required:"true"`
	WorkflowAPIKey  string        `envconfig:"WORKFLOW_API_KEY"`
	WorkflowTimeout time.Duration `envconfig:"WORKFLOW_TIMEOUT" default:"10s"`

	ChannelConfig
	StoreConfig
	OutboxConfig
}

type WorkerConfig struct {
	// health and metrics only
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	SQSWaitTime       int32 `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs        int32 `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout     int32 `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`
	WorkerConcurrency int   `envconfig:"WORKER_CONCURRENCY" default:"4"`

	WorkflowBaseURL string        `envconfig:"WORKFLOW_BASE_URL" required:"true"`
	WorkflowAPIKey  string        `envconfig:"WORKFLOW_API_KEY"`
	WorkflowTimeout time.Duration `envconfig:"WORKFLOW_TIMEOUT" default:"10s"`

	ChannelConfig
	StoreConfig
	OutboxConfig
}

func LoadAPI() (APIConfig, error) {
	var cfg APIConfig
	if err := load(&cfg); err != nil {
		return cfg, err
	}
	return cfg, errors.Join(cfg.ChannelConfig.Validate(), cfg.StoreConfig.Validate())
}

func LoadWebhook() (WebhookConfig, error) {
	var cfg WebhookConfig
	if err := load(&cfg); err != nil {
		return cfg, err
	}
	return cfg, errors.Join(cfg.ChannelConfig.Validate(), cfg.StoreConfig.Validate())
}

// LoadWorker also insists on a shared ledger and a queue: the worker runs in
// its own process and cannot see an in-memory ledger.
func LoadWorker() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := load(&cfg); err != nil {
		return cfg, err
	}
	errs := []error{cfg.ChannelConfig.Validate(), cfg.StoreConfig.Validate()}
	if cfg.Backend != BackendPostgres {
		errs = append(errs, errors.New("worker requires STORE_BACKEND=postgres"))
	}
	if !cfg.OutboxConfig.Enabled() {
		errs = append(errs, errors.New("worker requires OUTBOX_QUEUE_URL"))
	}
	return cfg, errors.Join(errs...)
}

// load reads an optional .env file (ENV_FILE overrides the path) and then the
// process environment. Variables already set win over the file.
func load(cfg any) error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	} else if os.Getenv("ENV_FILE") != "" {
		return fmt.Errorf("ENV_FILE %s: %w", path, err)
	}
	return envconfig.Process("", cfg)
}
