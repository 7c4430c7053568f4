// Command mock-workflow stands in for the filing workflow runner in local
// stacks. Outcomes come from MOCK_OUTCOMES, e.g. "ok,server_error,ok".
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
	"github.com/oklog/ulid/v2"

	"cipcagent/internal/domain"
	"cipcagent/internal/httpserver"
	"cipcagent/internal/logging"
)

type config struct {
	Port        string        `envconfig:"PORT" default:"8090"`
	APIKey      string        `envconfig:"WORKFLOW_API_KEY"`
	OutcomesRaw string        `envconfig:"MOCK_OUTCOMES" default:"ok"`
	Delay       time.Duration `envconfig:"MOCK_DELAY" default:"0"`
	LogFormat   string        `envconfig:"LOG_FORMAT" default:"text"`

	// how long "timeout" outcomes hang before answering
	TimeoutDelay time.Duration `envconfig:"MOCK_TIMEOUT_DELAY" default:"15s"`
}

type server struct {
	cfg      config
	outcomes []string
	idx      uint64

	mu      sync.Mutex
	started map[string]string // payment reference -> filing id
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock workflow config load failed", "err", err)
		os.Exit(1)
	}
	logging.Init("mock-workflow", cfg.LogFormat)

	s := newServer(cfg)
	slog.Info("mock workflow listening", "port", cfg.Port, "outcomes", s.outcomes)
	if err := http.ListenAndServe(":"+cfg.Port, httpserver.Logging(s.routes())); err != nil {
		slog.Error("mock workflow server failed", "err", err)
		os.Exit(1)
	}
}

func newServer(cfg config) *server {
	return &server{cfg: cfg, outcomes: parseCSV(cfg.OutcomesRaw), started: map[string]string{}}
}

func (s *server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/filing/start", s.handleStart).Methods(http.MethodPost)
	router.HandleFunc("/api/filing/{ref}", s.handleGet).Methods(http.MethodGet)
	return router
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.cfg.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}
	var req domain.FilingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentReference == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "payment_reference is required"})
		return
	}

	if s.cfg.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.Delay):
		}
	}

	switch outcome := s.nextOutcome(); outcome {
	case "ok":
	case "rejected", "422":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "company not eligible"})
		return
	case "rate_limit", "429":
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
		return
	case "timeout":
		select {
		case <-r.Context().Done():
		case <-time.After(s.cfg.TimeoutDelay):
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{"message": "timed out"})
		}
		return
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "mock error: " + outcome})
		return
	}

	s.mu.Lock()
	id, seen := s.started[req.PaymentReference]
	if !seen {
		id = "FIL-" + ulid.Make().String()
		s.started[req.PaymentReference] = id
	}
	s.mu.Unlock()
	if seen {
		// the real runner would start a second filing here
		slog.Warn("duplicate filing start", "payment_reference", req.PaymentReference, "filing_id", id)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"filing_id": id,
		"status":    "initiated",
		"message":   "Filing workflow started for " + req.CompanyName,
	})
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	s.mu.Lock()
	id, ok := s.started[ref]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filing_id": id, "status": "initiated"})
}

func (s *server) nextOutcome() string {
	i := atomic.AddUint64(&s.idx, 1) - 1
	return s.outcomes[int(i%uint64(len(s.outcomes)))]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{"ok"}
	}
	return out
}
