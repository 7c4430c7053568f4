package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cipcagent/internal/domain"
)

type fakeAuth struct {
	loginErr    error
	validateErr error
	lastToken   string
}

func (f *fakeAuth) Login(_ context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	if f.loginErr != nil {
		return domain.LoginResponse{}, f.loginErr
	}
	return domain.LoginResponse{
		TokenID:   "tok",
		ExpiresAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Channel:   domain.Channel(req.Channel),
		Delivered: true,
		Message:   "Magic link sent via " + req.Channel,
	}, nil
}

func (f *fakeAuth) Validate(_ context.Context, token string) (domain.SessionResponse, error) {
	f.lastToken = token
	if f.validateErr != nil {
		return domain.SessionResponse{}, f.validateErr
	}
	return domain.SessionResponse{SubjectID: "lead-1", AccessToken: "jwt"}, nil
}

func authRouter(f *fakeAuth) http.Handler {
	s := New()
	(&Auth{Svc: f}).Register(s.Mux)
	return RequestID(s.Mux)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestLoginAccepted(t *testing.T) {
	h := authRouter(&fakeAuth{})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"subjectId":"lead-1","contact":"+27821234567","channel":"whatsapp"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TokenID != "tok" || !resp.Delivered || resp.Channel != domain.ChannelWhatsApp {
		t.Fatalf("unexpected response %+v", resp)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestLoginErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{"subjectId":`, nil, http.StatusBadRequest},
		{"invalid request", `{}`, fmt.Errorf("%w: subjectId is required", domain.ErrInvalidRequest), http.StatusBadRequest},
		{"unsupported channel", `{"subjectId":"a","channel":"sms"}`, fmt.Errorf("%w: %q", domain.ErrUnsupportedChannel, "sms"), http.StatusBadRequest},
		{"store failure", `{"subjectId":"a","channel":"email"}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := authRouter(&fakeAuth{loginErr: tc.err})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(tc.body)))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if msg := decodeError(t, rr); msg == "" || strings.Contains(msg, "db down") {
				t.Fatalf("unexpected error body %q", msg)
			}
		})
	}
}

func TestMagicLinkValidation(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		err    error
		status int
		errMsg string
	}{
		{"missing token", "", nil, http.StatusBadRequest, ErrMissingToken},
		{"not found", "?token=abc", domain.ErrTokenNotFound, http.StatusUnauthorized, ErrNotFound},
		{"expired", "?token=abc", domain.ErrTokenExpired, http.StatusGone, ErrExpired},
		{"internal", "?token=abc", errors.New("boom"), http.StatusInternalServerError, ErrInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := authRouter(&fakeAuth{validateErr: tc.err})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/magic-link"+tc.query, nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if msg := decodeError(t, rr); msg != tc.errMsg {
				t.Fatalf("expected %q, got %q", tc.errMsg, msg)
			}
		})
	}
}

func TestMagicLinkSuccess(t *testing.T) {
	f := &fakeAuth{}
	h := authRouter(f)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/magic-link?token=a%2Bb", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if f.lastToken != "a+b" {
		t.Fatalf("token not unescaped: %q", f.lastToken)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("session response must not be cached")
	}
	var sess domain.SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.SubjectID != "lead-1" || sess.AccessToken != "jwt" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestLoginWrongMethod(t *testing.T) {
	h := authRouter(&fakeAuth{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
