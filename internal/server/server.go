// Package server hosts the line feed over HTTP.
//
// It exposes a WebSocket feed at /feed, where each connection drains its own
// stream, and a JSON health report at /healthz. Run serves until its context
// ends and then shuts down gracefully, closing open feeds.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/version"
	"github.com/conneroisu/typster/internal/websocket"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// HealthStatus is the body of /healthz.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Feeds     int64     `json:"feeds"`
	Lines     int64     `json:"lines"`
}

// Server is the feed server.
type Server struct {
	cfg    *config.Config
	logger logging.Logger
	feed   *websocket.FeedHandler

	mu      sync.RWMutex
	addr    string
	started time.Time
	ready   chan struct{}
}

// New creates a Server that builds one queue per feed with newQueue.
func New(cfg *config.Config, newQueue websocket.QueueFactory, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	origins := websocket.NewAllowList(cfg.Server.Host, cfg.Server.Port, cfg.Server.AllowedOrigins)
	return &Server{
		cfg:    cfg,
		logger: logger.WithComponent("server"),
		feed: websocket.NewFeedHandler(newQueue, origins,
			websocket.WithMaxConnections(cfg.Server.MaxConnections),
			websocket.WithLogger(logger),
		),
		ready: make(chan struct{}),
	}
}

// Handler returns the routes with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/feed", s.feed)
	mux.HandleFunc("/healthz", s.handleHealth)
	return s.logRequests(mux)
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, empty before Ready.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Run serves until ctx ends, then shuts down. It must be called once.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// feeds hijack their connection, so Shutdown alone would not end them
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.started = time.Now()
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info(ctx, "Feed server listening", "addr", s.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info(ctx, "Shutting down feed server", "feeds", s.feed.Active())

		cancelBase()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started).Truncate(time.Second)
	}

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.GetVersion(),
		Uptime:    uptime.String(),
		Feeds:     s.feed.Active(),
		Lines:     s.feed.Served(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}
