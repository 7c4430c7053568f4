package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"cipcagent/internal/domain"
)

const maxLoginBody = 16 << 10

type AuthService interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
	Validate(ctx context.Context, tokenID string) (domain.SessionResponse, error)
}

type Auth struct {
	Svc AuthService
}

func (a *Auth) Register(m *mux.Router) {
	m.HandleFunc("/v1/auth/login", a.handleLogin).Methods(http.MethodPost)
	m.HandleFunc("/v1/auth/magic-link", a.handleMagicLink).Methods(http.MethodGet)
}

func (a *Auth) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}

	resp, err := a.Svc.Login(r.Context(), req)
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnsupportedChannel):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("login failed",
			"err", err,
			"subject_id", req.SubjectID,
			"channel", req.Channel,
			"request_id", RequestIDFrom(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, ErrInternal)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (a *Auth) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, ErrMissingToken)
		return
	}

	sess, err := a.Svc.Validate(r.Context(), token)
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		writeError(w, http.StatusUnauthorized, ErrNotFound)
		return
	case errors.Is(err, domain.ErrTokenExpired):
		writeError(w, http.StatusGone, ErrExpired)
		return
	case err != nil:
		slog.Error("magic link validation failed", "err", err, "request_id", RequestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, ErrInternal)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, sess)
}
