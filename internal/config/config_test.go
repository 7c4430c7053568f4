package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cipcagent/internal/domain"
)

func setAPIEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", "")
	t.Setenv("APP_BASE_URL", "https://app.example.co.za")
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CHANNELS", "telegram")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
}

func TestLoadAPIDefaults(t *testing.T) {
	setAPIEnv(t)

	cfg, err := LoadAPI()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.MagicLinkTTL != 24*time.Hour || cfg.Backend != BackendMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	chs, _ := cfg.ChannelConfig.Enabled()
	if len(chs) != 1 || chs[0] != domain.ChannelTelegram {
		t.Fatalf("unexpected channels %v", chs)
	}
	if cfg.OutboxConfig.Enabled() {
		t.Fatalf("outbox should be off without OUTBOX_QUEUE_URL")
	}
}

func TestLoadAPIMissingCredentials(t *testing.T) {
	setAPIEnv(t)
	t.Setenv("CHANNELS", "whatsapp,email")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")

	_, err := LoadAPI()
	if err == nil {
		t.Fatalf("expected credential errors")
	}
	if !strings.Contains(err.Error(), "whatsapp enabled") || !strings.Contains(err.Error(), "RESEND_API_KEY") {
		t.Fatalf("expected both channels reported, got %v", err)
	}
}

func TestLoadAPIUnknownChannel(t *testing.T) {
	setAPIEnv(t)
	t.Setenv("CHANNELS", "telegram,sms")

	if _, err := LoadAPI(); err == nil || !strings.Contains(err.Error(), "sms") {
		t.Fatalf("expected unknown channel error, got %v", err)
	}
}

func TestStoreValidate(t *testing.T) {
	if err := (StoreConfig{Backend: BackendPostgres}).Validate(); err == nil {
		t.Fatalf("postgres without DSN must fail")
	}
	if err := (StoreConfig{Backend: "redis"}).Validate(); err == nil {
		t.Fatalf("unknown backend must fail")
	}
	if err := (StoreConfig{Backend: BackendPostgres, DBDSN: "postgres://x"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadWorkerNeedsSharedState(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("WORKFLOW_BASE_URL", "http://runner")
	t.Setenv("CHANNELS", "")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("OUTBOX_QUEUE_URL", "")

	_, err := LoadWorker()
	if err == nil || !strings.Contains(err.Error(), "STORE_BACKEND=postgres") || !strings.Contains(err.Error(), "OUTBOX_QUEUE_URL") {
		t.Fatalf("expected shared state errors, got %v", err)
	}
}

func TestLoadWebhookFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	body := "PAYMENT_WEBHOOK_SECRET=from-file\nWORKFLOW_BASE_URL=http://runner.local\nCHANNELS=telegram\nTELEGRAM_BOT_TOKEN=t\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	// already-set variables win over the file
	t.Setenv("WORKFLOW_BASE_URL", "http://runner.env")
	// unset for the load; t.Setenv restores them afterwards
	for _, k := range []string{"PAYMENT_WEBHOOK_SECRET", "CHANNELS", "TELEGRAM_BOT_TOKEN"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadWebhook()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PaymentSecret != "from-file" {
		t.Fatalf("expected secret from file, got %q", cfg.PaymentSecret)
	}
	if cfg.WorkflowBaseURL != "http://runner.env" {
		t.Fatalf("environment must override the file, got %q", cfg.WorkflowBaseURL)
	}
	if cfg.WorkflowTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.WorkflowTimeout)
	}
}
