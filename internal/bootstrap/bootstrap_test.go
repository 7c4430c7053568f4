package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cipcagent/internal/config"
	"cipcagent/internal/domain"
)

func TestDispatcherOnlyEnabledChannels(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	d, err := Dispatcher(config.ChannelConfig{
		Channels:         []string{"telegram"},
		TelegramBotToken: "123:abc",
		TelegramBaseURL:  srv.URL,
		ChannelRPS:       100,
		ChannelBurst:     10,
	})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	if !d.Supports(domain.ChannelTelegram) || d.Supports(domain.ChannelWhatsApp) || d.Supports(domain.ChannelEmail) {
		t.Fatalf("unexpected channels %v", d.Channels())
	}
	if err := d.Send(context.Background(), domain.ChannelTelegram, "42", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("configured base url not used, path %q", gotPath)
	}
}

func TestDispatcherRejectsUnknownChannel(t *testing.T) {
	if _, err := Dispatcher(config.ChannelConfig{Channels: []string{"pigeon"}}); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

func TestOutboxDisabled(t *testing.T) {
	p, c, err := Outbox(context.Background(), config.OutboxConfig{})
	if err != nil || p != nil || c != nil {
		t.Fatalf("expected no outbox, got %v %v %v", p, c, err)
	}
}
