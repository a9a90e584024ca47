// server/server.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package server provides the HTTP API for parsing, storing and
// watching flight plans.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/flightplan"
	"github.com/mmp/fms/log"
	"github.com/mmp/fms/metrics"
	"github.com/mmp/fms/store"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

type Options struct {
	NavDB   av.NavDB
	Store   store.Store
	Metrics *metrics.Metrics // may be nil

	// RateLimit is the sustained number of API requests per second that
	// are accepted; zero disables limiting.
	RateLimit float64
	RateBurst int

	// AllowedOrigins enables CORS for the given origins.
	AllowedOrigins []string
	// AccessLog receives an Apache combined-format line per request.
	AccessLog io.Writer

	// EventPollInterval is how often websocket subscribers are checked
	// for new events.
	EventPollInterval time.Duration
}

type Server struct {
	db        av.NavDB
	store     store.Store
	metrics   *metrics.Metrics
	registry  *flightplan.Registry
	events    *EventStream
	limiter   *rate.Limiter
	opts      Options
	startTime time.Time
	lg        *log.Logger
}

func New(opts Options, lg *log.Logger) (*Server, error) {
	if opts.NavDB == nil {
		return nil, errors.New("no navigation database provided")
	}
	if opts.Store == nil {
		return nil, errors.New("no flight plan store provided")
	}
	if opts.EventPollInterval == 0 {
		opts.EventPollInterval = 250 * time.Millisecond
	}

	s := &Server{
		db:        opts.NavDB,
		store:     opts.Store,
		metrics:   opts.Metrics,
		registry:  flightplan.NewRegistry(),
		events:    NewEventStream(lg),
		opts:      opts,
		startTime: time.Now(),
		lg:        lg,
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))
	}

	if err := s.registry.Register(s.events); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		if err := s.registry.Register(metrics.NewDelegateFactory(s.metrics)); err != nil {
			return nil, err
		}
		s.store = store.Instrument(s.store, "", s.metrics)
	}
	return s, nil
}

func (s *Server) Events() *EventStream { return s.events }

// newFlightPlan returns a plan with the server's delegates attached; it
// must be closed when the request is done with it.
func (s *Server) newFlightPlan(ident string, isRoute bool) *flightplan.FlightPlan {
	var fp *flightplan.FlightPlan
	if isRoute {
		fp = flightplan.NewRoute(s.db, s.registry, s.lg)
	} else {
		fp = flightplan.New(s.db, s.registry, s.lg)
	}
	fp.SetIdent(ident)
	return fp
}

// Handler returns the server's routes wrapped with its middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/sup", s.statusPage).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.limit)
	api.HandleFunc("/route/parse", s.parseRoute).Methods(http.MethodPost)
	api.HandleFunc("/plans", s.listPlans).Methods(http.MethodGet)
	api.HandleFunc("/plans/{name:.+}/route", s.getRoute).Methods(http.MethodGet)
	api.HandleFunc("/plans/{name:.+}", s.putPlan).Methods(http.MethodPost, http.MethodPut)
	api.HandleFunc("/plans/{name:.+}", s.getPlan).Methods(http.MethodGet)
	api.HandleFunc("/plans/{name:.+}", s.deletePlan).Methods(http.MethodDelete)
	api.HandleFunc("/events", s.streamEvents).Methods(http.MethodGet)

	var h http.Handler = r
	if len(s.opts.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.opts.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Content-Type"}))(h)
	}
	if s.opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.opts.AccessLog, h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.lg}))(h)
}

type recoveryLogger struct {
	lg *log.Logger
}

func (r recoveryLogger) Println(args ...interface{}) {
	r.lg.Error("panic serving request", slog.Any("panic", args))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errch := make(chan error, 1)
	go func() { errch <- srv.Serve(ln) }()
	s.lg.Info("serving", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errch:
		s.events.Destroy()
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(sctx)
	s.events.Destroy()
	if err != nil {
		return err
	}
	if err := <-errch; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Close() error {
	s.events.Destroy()
	return s.store.Close()
}
