package httpserver

import (
	"encoding/json"
	"net/http"
)

const (
	ErrInvalidJSON      = "invalid json"
	ErrMissingToken     = "missing token"
	ErrNotFound         = "not_found"
	ErrExpired          = "expired"
	ErrInternal         = "internal error"
	ErrInvalidSignature = "invalid signature"
	ErrDependency       = "dependency error"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
