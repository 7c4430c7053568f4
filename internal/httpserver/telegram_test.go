package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"cipcagent/internal/domain"
)

type chatReply struct {
	ch      domain.Channel
	contact string
	text    string
}

type fakeChat struct {
	mu      sync.Mutex
	replies []chatReply
}

func (f *fakeChat) Send(_ context.Context, ch domain.Channel, contact, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, chatReply{ch, contact, message})
	return nil
}

type fakeLogin struct {
	err  error
	reqs []domain.LoginRequest
}

func (f *fakeLogin) Login(_ context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return domain.LoginResponse{}, f.err
	}
	return domain.LoginResponse{TokenID: "tok", Channel: domain.ChannelTelegram, Delivered: true}, nil
}

func botRouter(b *TelegramBot) http.Handler {
	s := New()
	b.Register(s.Mux)
	return RequestID(s.Mux)
}

func postUpdate(h http.Handler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/telegram/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(telegramSecretHeader, secret)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func update(text string) string {
	return `{"update_id":7,"message":{"message_id":1,"chat":{"id":555000111,"type":"private"},"from":{"id":9,"first_name":"Thandi"},"text":` +
		strconv.Quote(text) + `}}`
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text, cmd, arg string
	}{
		{"/start", "start", ""},
		{"/START", "start", ""},
		{"/help", "help", ""},
		{"help", "help", ""},
		{"status", "status", ""},
		{"/status@CipcAgentBot", "status", ""},
		{"/login 2023/123456/07", "login", "2023/123456/07"},
		{"  login   K2020 ", "login", "K2020"},
		{"/login@CipcAgentBot C1", "login", "C1"},
		{"/login", "login", ""},
		{"/login a b", "unknown", ""},
		{"/start now", "unknown", ""},
		{"hello there", "unknown", ""},
		{"   ", "unknown", ""},
	}
	for _, c := range cases {
		cmd, arg := parseCommand(c.text)
		if cmd != c.cmd || arg != c.arg {
			t.Fatalf("parseCommand(%q) = (%q, %q), want (%q, %q)", c.text, cmd, arg, c.cmd, c.arg)
		}
	}
}

func TestTelegramLoginRequestsMagicLink(t *testing.T) {
	svc, chat := &fakeLogin{}, &fakeChat{}
	h := botRouter(&TelegramBot{Svc: svc, Reply: chat})

	rr := postUpdate(h, update("/login 2023/123456/07"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(svc.reqs) != 1 {
		t.Fatalf("expected one login, got %d", len(svc.reqs))
	}
	want := domain.LoginRequest{SubjectID: "2023/123456/07", Contact: "555000111", Channel: "telegram"}
	if svc.reqs[0] != want {
		t.Fatalf("unexpected login request %+v", svc.reqs[0])
	}
	if len(chat.replies) != 1 || chat.replies[0].ch != domain.ChannelTelegram || chat.replies[0].contact != "555000111" ||
		!strings.Contains(chat.replies[0].text, "Magic Link Sent") {
		t.Fatalf("unexpected replies %+v", chat.replies)
	}

	postUpdate(h, update("/status"), "")
	if last := chat.replies[len(chat.replies)-1].text; !strings.Contains(last, "2023/123456/07") {
		t.Fatalf("status should name the company, got %q", last)
	}
}

func TestTelegramLoginWithoutCompanyID(t *testing.T) {
	svc, chat := &fakeLogin{}, &fakeChat{}
	h := botRouter(&TelegramBot{Svc: svc, Reply: chat})

	if rr := postUpdate(h, update("/login"), ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(svc.reqs) != 0 {
		t.Fatalf("login must not be called without a company id")
	}
	if len(chat.replies) != 1 || !strings.Contains(chat.replies[0].text, "Missing Company ID") {
		t.Fatalf("unexpected replies %+v", chat.replies)
	}
}

func TestTelegramLoginFailureStillAcknowledged(t *testing.T) {
	svc := &fakeLogin{err: errors.New("db down")}
	chat := &fakeChat{}
	h := botRouter(&TelegramBot{Svc: svc, Reply: chat})

	if rr := postUpdate(h, update("/login C1"), ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(chat.replies) != 1 || chat.replies[0].text != telegramLoginFailed {
		t.Fatalf("unexpected replies %+v", chat.replies)
	}
}

func TestTelegramCommandReplies(t *testing.T) {
	cases := map[string]string{
		"/start":       telegramWelcome,
		"/help":        telegramHelp,
		"/status":      telegramNoSession,
		"what is this": telegramUnknown,
	}
	for text, want := range cases {
		chat := &fakeChat{}
		h := botRouter(&TelegramBot{Svc: &fakeLogin{}, Reply: chat})
		if rr := postUpdate(h, update(text), ""); rr.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", text, rr.Code)
		}
		if len(chat.replies) != 1 || chat.replies[0].text != want {
			t.Fatalf("%q: unexpected replies %+v", text, chat.replies)
		}
	}
}

func TestTelegramSecretToken(t *testing.T) {
	chat := &fakeChat{}
	h := botRouter(&TelegramBot{Svc: &fakeLogin{}, Reply: chat, Secret: "hook-secret"})

	if rr := postUpdate(h, update("/help"), ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: expected 401, got %d", rr.Code)
	}
	if rr := postUpdate(h, update("/help"), "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rr.Code)
	}
	if len(chat.replies) != 0 {
		t.Fatalf("unauthenticated updates must not be answered")
	}
	if rr := postUpdate(h, update("/help"), "hook-secret"); rr.Code != http.StatusOK {
		t.Fatalf("valid secret: expected 200, got %d", rr.Code)
	}
}

func TestTelegramIgnoresNonTextUpdates(t *testing.T) {
	chat := &fakeChat{}
	h := botRouter(&TelegramBot{Svc: &fakeLogin{}, Reply: chat})

	for _, body := range []string{`{"update_id":1}`, `{"update_id":2,"message":{"chat":{"id":1}}}`} {
		if rr := postUpdate(h, body, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", body, rr.Code)
		}
	}
	if len(chat.replies) != 0 {
		t.Fatalf("expected no replies, got %+v", chat.replies)
	}
	if rr := postUpdate(h, `{not json`, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed update, got %d", rr.Code)
	}
}
