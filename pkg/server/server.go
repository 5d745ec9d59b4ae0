package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the live session over HTTP.
type Server struct {
	server   *http.Server
	router   *mux.Router
	cfg      *Options
	source   Source
	registry *prometheus.Registry
}

func New(source Source, opts ...Option) *Server {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Server{
		router:   mux.NewRouter(),
		cfg:      options,
		source:   source,
		registry: newRegistry(source),
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:              net.JoinHostPort(options.Host, fmt.Sprint(options.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	log.Infof("server started listening on %s ...", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	log.Debug("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
