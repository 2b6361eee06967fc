// Package admin runs the server's side-channel HTTP endpoint: Prometheus
// metrics and a JSON rendering of the same stats report the wire protocol
// exposes via STATS. It is entirely separate from the cache wire protocol.
package admin

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rcache/rcache/internal/stats"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves /metrics and /stats over HTTP for operational visibility.
type Server struct {
	http *http.Server
}

// New builds an admin HTTP server bound to addr. s's Prometheus collectors
// are registered with a dedicated registry (not the global one, so tests
// can spin up multiple instances without collector-already-registered
// panics).
func New(addr string, s *stats.Stats) *Server {
	registry := prometheus.NewRegistry()
	for _, c := range s.Collectors() {
		registry.MustRegister(c)
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", statsHandler(s)).Methods(http.MethodGet)

	return &Server{http: &http.Server{Addr: addr, Handler: r}}
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func statsHandler(s *stats.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := s.Get()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}

// ListenAndServe runs the admin HTTP server until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the admin HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
