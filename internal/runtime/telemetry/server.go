package telemetry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
)

// ShutdownTimeout bounds how long Close waits for in-flight scrapes.
var ShutdownTimeout = 5 * time.Second

// Server groups HTTP handlers by port and serves each port from its own
// listener.
type Server struct {
	logger loggingpkg.ServiceLogger

	mu      sync.Mutex
	muxes   map[int]*http.ServeMux
	servers []*http.Server
	addrs   map[int]net.Addr
}

// NewServer returns an idle server.
func NewServer(logger loggingpkg.ServiceLogger) *Server {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return &Server{
		logger: loggingpkg.Component(logger, "telemetry"),
		muxes:  make(map[int]*http.ServeMux),
		addrs:  make(map[int]net.Addr),
	}
}

// Handle registers handler for pattern on port. Port 0 picks a free port when
// the server starts.
func (s *Server) Handle(port int, pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mux, ok := s.muxes[port]
	if !ok {
		mux = http.NewServeMux()
		s.muxes[port] = mux
	}
	mux.Handle(pattern, handler)
}

// HandleMetrics exposes the collectors gathered by gatherer on port/path.
func (s *Server) HandleMetrics(port int, path string, gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if path == "" {
		path = "/metrics"
	}
	s.Handle(port, path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Start opens a listener per registered port and serves in the background.
// When any port cannot be bound, the listeners already opened are closed and
// nothing is served.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listeners := make(map[int]net.Listener, len(s.muxes))
	for _, port := range slices.Sorted(maps.Keys(s.muxes)) {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return fmt.Errorf("telemetry: listen on %d: %w", port, err)
		}
		listeners[port] = ln
	}

	for port, ln := range listeners {
		srv := &http.Server{Handler: s.muxes[port], ReadHeaderTimeout: 5 * time.Second}
		s.servers = append(s.servers, srv)
		s.addrs[port] = ln.Addr()

		s.logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": ln.Addr().String()})
		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server stopped", err, loggingpkg.LogFields{"address": ln.Addr().String()})
			}
		}(srv, ln)
	}
	return nil
}

// Addr returns the bound address for a registered port once started.
func (s *Server) Addr(port int) (net.Addr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.addrs[port]
	return addr, ok
}

// Close shuts every listener down.
func (s *Server) Close() error {
	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
