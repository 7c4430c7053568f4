package httpserver

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Mux *mux.Router
}

// New returns a router with /metrics and /healthz mounted. Callers add
// /readyz with their own checks.
func New() *Server {
	m := mux.NewRouter()
	m.Handle("/metrics", promhttp.Handler()).Methods("GET")
	m.Handle("/healthz", Healthz()).Methods("GET")
	return &Server{Mux: m}
}
