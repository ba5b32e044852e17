// Package webservice provides the HTTP server accepting leads, alongside its metrics server.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/forgehomes/lead-intake/internal/metrics"
	"github.com/forgehomes/lead-intake/internal/webservice/handlers"
	wsmetrics "github.com/forgehomes/lead-intake/internal/webservice/metrics"
)

// Routes served by the primary listener.
const (
	RouteLead       = "/lead"
	RouteLegacyLead = "/.netlify/functions/add-contact"
	RouteVersion    = "/version"
)

// Server accepts leads on the primary listener and exposes metrics on a second one.
type Server struct {
	httpServer    *http.Server
	metricsServer *metrics.Server
	cm            dConfigManager

	primaryAddr net.Addr
	mu          sync.RWMutex

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context waits until in-flight requests are done to interrupt.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// StaticConfig holds the static configuration for the server.
type StaticConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RequestTimeout cancels the context of a request still running after it. 0 disables it.
	RequestTimeout time.Duration
	MaxHeaderBytes int
	MaxUploadBytes int

	ListenHost  string
	ListenPort  int
	MetricsHost string
	MetricsPort int
}

type dConfigManager interface {
	Load() error
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
}

// Registry both collects metrics and exposes them.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

type options struct {
	registry Registry
}

// Options represents an optional function to override Server default values.
type Options func(*options)

// WithRegistry registers the HTTP metrics on reg and exposes everything reg gathers.
func WithRegistry(reg Registry) Options {
	return func(o *options) {
		o.registry = reg
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates a new Server handing leads to p.
func New(ctx context.Context, cm dConfigManager, p handlers.Processor, sc StaticConfig, args ...Options) (*Server, error) {
	if err := cm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	opts := options{}
	for _, opt := range args {
		opt(&opts)
	}
	if opts.registry == nil {
		opts.registry = NewRegistry()
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		cm:     cm,
		ctx:    ctx,
		cancel: cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel,
	}

	leadHandler := handlers.NewLead(p, int64(sc.MaxUploadBytes))
	mux := http.NewServeMux()
	mux.Handle(RouteLead, leadHandler)
	mux.Handle(RouteLegacyLead, leadHandler)
	mux.Handle("GET "+RouteVersion, http.HandlerFunc(handlers.VersionHandler))

	var handler http.Handler = mux
	if sc.RequestTimeout > 0 {
		handler = withRequestTimeout(mux, sc.RequestTimeout)
	}

	s.httpServer = &http.Server{
		Addr:           net.JoinHostPort(sc.ListenHost, strconv.Itoa(sc.ListenPort)),
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		Handler:        wsmetrics.New(opts.registry).Monitor("lead-intake", handler),
		MaxHeaderBytes: sc.MaxHeaderBytes,
	}

	s.metricsServer = metrics.New(metrics.Config{
		Host:         sc.MetricsHost,
		Port:         sc.MetricsPort,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}, opts.registry)

	return &s, nil
}

// withRequestTimeout cancels the request context after d.
// The handler keeps answering the request itself, so an expired deadline is reported like any other failure.
func withRequestTimeout(next http.Handler, d time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Run starts the HTTP servers and blocks until they stop.
func (s *Server) Run() error {
	slog.Info("Starting server", "addr", s.httpServer.Addr)

	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	_, watchErr, err := s.cm.Watch(s.gracefulCtx)
	if err != nil {
		return fmt.Errorf("failed to start watching configuration: %v", err)
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to listen on %s: %v", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.primaryAddr = listener.Addr()
	s.mu.Unlock()

	serverErr := make(chan error, 2)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("metrics server: %v", err)
		}
	}()

	for {
		select {
		case <-s.gracefulCtx.Done():
			slog.Info("Graceful shutdown initiated")
			// use parent ctx so if you call s.cancel() elsewhere it unblocks Shutdown immediately
			err := errors.Join(s.httpServer.Shutdown(s.ctx), s.metricsServer.Shutdown(s.ctx))
			s.cancel()
			if err != nil {
				slog.Error("Graceful shutdown failed", "err", err)
				return err
			}
			slog.Info("Server shut down gracefully")
			return nil

		case err := <-serverErr:
			slog.Error("Server encountered error", "err", err)
			errC := errors.Join(s.httpServer.Close(), s.metricsServer.Close())
			s.cancel()
			return errors.Join(err, errC)

		case err, ok := <-watchErr:
			if !ok {
				// The watcher stops with the graceful context.
				watchErr = nil
				continue
			}
			slog.Error("Config watcher encountered unrecoverable error", "err", err)
			errC := errors.Join(s.httpServer.Close(), s.metricsServer.Close())
			s.cancel()
			return errors.Join(err, errC)
		}
	}
}

// Quit shuts down the HTTP servers, waiting for in-flight requests unless force is set.
func (s *Server) Quit(force bool) {
	defer s.cancel()

	if force {
		s.httpServer.Close()
		s.metricsServer.Close()
	} else {
		s.gracefulCancel()
	}
	slog.Info("Server quit")
}

// Addr returns the address the primary server listens on, or an empty string before Run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.primaryAddr == nil {
		return ""
	}
	return s.primaryAddr.String()
}

// MetricsAddr returns the address the metrics server listens on, or an empty string before Run.
func (s *Server) MetricsAddr() string {
	return s.metricsServer.Addr()
}
