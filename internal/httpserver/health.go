package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ReadyzCheck is one dependency probe; Name shows up in the 503 body.
type ReadyzCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// Readyz runs every check under one shared timeout and reports the first
// failure.
func Readyz(timeout time.Duration, checks ...ReadyzCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				slog.Warn("readiness check failed", "check", c.Name, "err", err)
				writeError(w, http.StatusServiceUnavailable, "not ready: "+c.Name)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
