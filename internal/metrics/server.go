package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/rotation"
)

// ServerConfig holds configuration for the metrics HTTP server.
type ServerConfig struct {
	// Enabled indicates whether the metrics server should run.
	Enabled bool

	// Listen is the address to listen on, e.g. ":9090".
	Listen string

	// Path is the path to serve metrics on.
	Path string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the default metrics server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Enabled:      false,
		Listen:       ":9090",
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves Prometheus metrics and a health endpoint.
type Server struct {
	config   ServerConfig
	logger   *logging.Logger
	status   *Status
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new metrics server. status may be nil.
func NewServer(config ServerConfig, status *Status, logger *logging.Logger) *Server {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{config: config, status: status, logger: logger}
}

// Handler returns the HTTP handler the server uses.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start binds the listener and serves in the background. Bind errors are
// returned, errors while serving are logged.
func (s *Server) Start() error {
	if !s.config.Enabled {
		return nil
	}

	InitMetrics()

	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Metrics server stopped")
		}
	}()

	s.logger.Info("Serving metrics on %s%s", ln.Addr(), s.config.Path)
	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthResponse struct {
	Status  string      `json:"status"`
	LastRun *lastRunDoc `json:"last_run,omitempty"`
}

type lastRunDoc struct {
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	FinishedAt time.Time `json:"finished_at"`
}

// handleHealth always answers 200 while the process is up; the last run
// outcome is informational.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.status != nil {
		if last := s.status.Last(); last != nil {
			resp.LastRun = &lastRunDoc{
				RunID:      last.RunID,
				Outcome:    string(last.Outcome),
				FinishedAt: last.FinishedAt,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// Status remembers the most recent run for the health endpoint.
type Status struct {
	mu   sync.RWMutex
	last *rotation.Result
}

var _ rotation.Recorder = (*Status)(nil)

// RecordRun implements rotation.Recorder.
func (s *Status) RecordRun(result *rotation.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = result
}

// Last returns the most recent run, or nil.
func (s *Status) Last() *rotation.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
