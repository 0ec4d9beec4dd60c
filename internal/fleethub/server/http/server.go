// Package http exposes the hub's REST API, health checks and metrics.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/service"
	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	"github.com/autopeer-io/fleethub/pkg/log"
	"github.com/autopeer-io/fleethub/pkg/options"
)

// ReadyCheck returns nil when a dependency is usable.
type ReadyCheck func() error

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

func NewServer(opts *options.HttpOptions, svc *service.Service, checks ...ReadyCheck) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(svc, checks...),
			ReadHeaderTimeout: opts.Timeout,
		},
		options: opts,
	}
}

// NewRouter builds the route table served by Server.
func NewRouter(svc *service.Service, checks ...ReadyCheck) *mux.Router {
	h := &handler{svc: svc}
	r := mux.NewRouter()

	// Basic liveness check
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Readiness check
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		for _, check := range checks {
			if err := check(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/vehicles", h.listVehicles).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id}", h.getVehicle).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id}", h.removeVehicle).Methods(http.MethodDelete)
	api.HandleFunc("/vehicles/{id}/unlock", h.unlockVehicle).Methods(http.MethodPost)
	api.HandleFunc("/commands/{token}", h.getCommand).Methods(http.MethodGet)
	api.HandleFunc("/commands/{token}", h.cancelCommand).Methods(http.MethodDelete)

	api.HandleFunc("/subjects/{id}", h.getSubject).Methods(http.MethodGet)
	api.HandleFunc("/subjects/{id}", h.closeSubject).Methods(http.MethodDelete)
	api.HandleFunc("/subjects/{id}/position", h.reportPosition).Methods(http.MethodPost)
	api.HandleFunc("/subjects/{id}/events", h.streamEvents).Methods(http.MethodGet)

	api.HandleFunc("/zones", h.listZones).Methods(http.MethodGet)
	api.HandleFunc("/borders", h.listBorders).Methods(http.MethodGet)

	r.Use(accessLog)
	return r
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
