package resend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cipcagent/internal/channel"
)

func TestSendEmail(t *testing.T) {
	var got emailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	}))
	defer srv.Close()

	s := &Sender{APIKey: "re_key", From: "CIPC Agent <noreply@example.co.za>", BaseURL: srv.URL, HTTP: srv.Client()}
	msg := "Welcome to CIPC Agent!\n\nYour magic link: https://x/auth/magic-link?token=abc"
	if err := s.Send(context.Background(), "owner@example.co.za", msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer re_key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if len(got.To) != 1 || got.To[0] != "owner@example.co.za" {
		t.Fatalf("unexpected recipients %v", got.To)
	}
	if got.Subject != "Welcome to CIPC Agent!" || got.Text != msg {
		t.Fatalf("unexpected subject/text %q / %q", got.Subject, got.Text)
	}
}

func TestSendEmailRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"message":"Invalid to field"}`))
	}))
	defer srv.Close()

	s := &Sender{APIKey: "k", From: "a@b.co", BaseURL: srv.URL, HTTP: srv.Client()}
	err := s.Send(context.Background(), "nope", "hi")
	var se *channel.StatusError
	if !errors.As(err, &se) || se.StatusCode != 422 || se.Message != "Invalid to field" {
		t.Fatalf("expected 422 status error, got %v", err)
	}
	if channel.ShouldRetry(err) {
		t.Fatalf("422 must not be retried")
	}
}

func TestSubjectFallback(t *testing.T) {
	s := &Sender{Subject: "Fallback"}
	if got := s.subject("\n\n"); got != "Fallback" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := s.subject("\n  First line  \nrest"); got != "First line" {
		t.Fatalf("unexpected subject %q", got)
	}
}
