// Package debug serves a read-only HTTP view of a running bridge.
//
// Endpoints:
//
//	GET /health   liveness
//	GET /tree     mounted roots and their node trees
//	GET /ticks    recent tick samples (?limit=N&min_ms=F&failed=true)
//	GET /metrics  Prometheus exposition, when a handler is configured
//
// The tree lives on the tick goroutine, so /tree does not read it directly.
// It submits a task through the executor's shared queue and waits for the
// next flush to answer.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/go-drift/hostbridge/internal/logging"
	"github.com/go-drift/hostbridge/pkg/bridge"
	"github.com/go-drift/hostbridge/pkg/executor"
)

// DefaultTreeTimeout bounds how long /tree waits for a flush.
const DefaultTreeTimeout = 2 * time.Second

type handler struct {
	runtime     *bridge.Runtime
	metrics     http.Handler
	logger      *slog.Logger
	treeTimeout time.Duration
}

// Option configures the handler.
type Option func(*handler)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *handler) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *handler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTreeTimeout overrides DefaultTreeTimeout.
func WithTreeTimeout(d time.Duration) Option {
	return func(s *handler) {
		if d > 0 {
			s.treeTimeout = d
		}
	}
}

// NewHandler returns the inspection router for rt.
func NewHandler(rt *bridge.Runtime, opts ...Option) http.Handler {
	h := &handler{
		runtime:     rt,
		logger:      logging.NewNop(),
		treeTimeout: DefaultTreeTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Get("/health", h.health)
	r.Get("/tree", h.tree)
	r.Get("/ticks", h.ticks)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]string{"status": "ok"})
}

// tree waits for the next flush to take a snapshot. The result channel is
// buffered so a task that runs after the request gave up does not block the
// tick.
func (h *handler) tree(w http.ResponseWriter, r *http.Request) {
	result := make(chan bridge.Snapshot, 1)
	h.runtime.Executor().Spawn(executor.TaskFunc(func() executor.Status {
		result <- h.runtime.Snapshot()
		return executor.Ready
	}))

	ctx, cancel := context.WithTimeout(r.Context(), h.treeTimeout)
	defer cancel()
	select {
	case snap := <-result:
		writeJSON(w, h.logger, snap)
	case <-ctx.Done():
		h.logger.Warn("tree snapshot timed out", "timeout", h.treeTimeout)
		http.Error(w, "no tick within "+h.treeTimeout.String(), http.StatusGatewayTimeout)
	}
}

func (h *handler) ticks(w http.ResponseWriter, r *http.Request) {
	timeline := h.runtime.TickTrace().Snapshot()
	applyTickFilters(r, &timeline)
	writeJSON(w, h.logger, timeline)
}

func applyTickFilters(r *http.Request, timeline *bridge.TickTimeline) {
	var filters []func(bridge.TickSample) bool
	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s bridge.TickSample) bool { return s.TickMs >= v })
	}
	if value := r.URL.Query().Get("failed"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			filters = append(filters, func(s bridge.TickSample) bool { return s.Error != "" })
		}
	}

	if len(filters) > 0 {
		filtered := make([]bridge.TickSample, 0, len(timeline.Samples))
	outer:
		for _, sample := range timeline.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		timeline.Samples = filtered
	}

	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 0 && len(timeline.Samples) > limit {
		timeline.Samples = timeline.Samples[len(timeline.Samples)-limit:]
	}
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}

// writeJSON encodes to a buffer first so encoding errors still produce a 500.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error("debug response encode failed", "error", err)
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Server runs the inspection handler on its own listener.
type Server struct {
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// Start binds addr and serves h in the background. Use ":0" for an
// ephemeral port and read it back with Addr.
func Start(addr string, h http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	// Bind first to fail fast on port conflicts.
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("debug server listen: %w", err)
	}
	s := &Server{
		server:   &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
		logger:   logger,
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("debug server stopped", "error", err)
		}
	}()
	logger.Info("debug server listening", "addr", listener.Addr().String())
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Shutdown stops the server gracefully. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
