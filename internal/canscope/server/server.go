package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/canscope/internal/canscope"
	"github.com/autopeer-io/canscope/internal/pkg/metrics"
	"github.com/autopeer-io/canscope/internal/pkg/middleware"
	"github.com/autopeer-io/canscope/pkg/log"
	"github.com/autopeer-io/canscope/pkg/options"
)

type Server struct {
	server  *http.Server
	options *options.HttpOptions
	scope   *canscope.Scope
}

func NewServer(opts *options.HttpOptions, scope *canscope.Scope) *Server {
	s := &Server{
		options: opts,
		scope:   scope,
	}
	s.server = &http.Server{
		Addr:    opts.Addr,
		Handler: s.Router(),
	}
	return s
}

// Router returns the route table. It is exposed for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Readiness Probe: ready once the transport is connected
	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Timeout(s.options.RequestTimeout))
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)
	api.HandleFunc("/log", s.logEntries).Methods(http.MethodGet)
	api.HandleFunc("/log/copy", s.copyFrames).Methods(http.MethodGet)
	api.HandleFunc("/log/resend", s.resend).Methods(http.MethodPost)
	api.HandleFunc("/monitor", s.monitorRows).Methods(http.MethodGet)
	api.HandleFunc("/frames", s.sendFrame).Methods(http.MethodPost)
	api.HandleFunc("/clear", s.clear).Methods(http.MethodPost)
	api.HandleFunc("/connect", s.connect).Methods(http.MethodPost)
	api.HandleFunc("/disconnect", s.disconnect).Methods(http.MethodPost)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	if !s.options.Enabled {
		return nil
	}
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if !s.scope.Connected() {
		http.Error(w, s.scope.State(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
