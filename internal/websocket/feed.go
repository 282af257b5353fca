// Package websocket serves line streams to browsers.
//
// Every accepted connection gets its own stream.Queue. Lines are written as
// JSON frames in stream order; when the stream ends an end frame is sent and
// the connection is closed normally. When the peer goes away the queue is
// closed, which stops its producer and any request in flight.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/semaphore"

	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/stream"
)

// Feed defaults.
const (
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxConnections = 16
)

// QueueFactory builds the queue for one connection.
type QueueFactory func() (*stream.Queue, error)

// FeedHandler is the http.Handler behind /feed.
type FeedHandler struct {
	newQueue     QueueFactory
	origins      OriginValidator
	logger       logging.Logger
	writeTimeout time.Duration
	slots        *semaphore.Weighted

	active atomic.Int64
	served atomic.Int64
}

// Option configures a FeedHandler.
type Option func(*FeedHandler)

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *FeedHandler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithMaxConnections caps concurrent feeds. Further upgrades are refused
// with 503.
func WithMaxConnections(n int) Option {
	return func(h *FeedHandler) {
		if n > 0 {
			h.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(h *FeedHandler) {
		if logger != nil {
			h.logger = logger.WithComponent("feed")
		}
	}
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(newQueue QueueFactory, origins OriginValidator, opts ...Option) *FeedHandler {
	h := &FeedHandler{
		newQueue:     newQueue,
		origins:      origins,
		logger:       logging.NewNop(),
		writeTimeout: DefaultWriteTimeout,
		slots:        semaphore.NewWeighted(DefaultMaxConnections),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Active returns the number of open feeds.
func (h *FeedHandler) Active() int64 {
	return h.active.Load()
}

// Served returns the number of lines written across all feeds.
func (h *FeedHandler) Served() int64 {
	return h.served.Load()
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if origin := r.Header.Get("Origin"); !h.origins.IsAllowedOrigin(origin) {
		h.logger.Warn(ctx, nil, "Feed rejected: origin not allowed", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if !h.slots.TryAcquire(1) {
		h.logger.Warn(ctx, nil, "Feed rejected: too many connections", "remote", r.RemoteAddr)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	defer h.slots.Release(1)

	queue, err := h.newQueue()
	if err != nil {
		h.logger.Error(ctx, err, "Failed to build stream")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = queue.Close() }()

	// origins are checked above
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(ctx, err, "Feed upgrade failed", "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	h.active.Add(1)
	defer h.active.Add(-1)

	// the feed is write only; CloseRead ends ctx when the peer closes
	ctx = conn.CloseRead(ctx)
	queue.Start(ctx)

	h.logger.Info(ctx, "Feed opened", "remote", r.RemoteAddr)
	sent, err := h.pump(ctx, conn, queue)
	switch {
	case err == nil:
		_ = conn.Close(websocket.StatusNormalClosure, "stream ended")
		h.logger.Info(ctx, "Feed finished", "remote", r.RemoteAddr, "lines", sent)
	case errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1:
		h.logger.Info(ctx, "Feed closed by peer", "remote", r.RemoteAddr, "lines", sent)
	default:
		h.logger.Warn(ctx, err, "Feed aborted", "remote", r.RemoteAddr, "lines", sent)
		_ = conn.Close(websocket.StatusInternalError, "write failed")
	}
}

// pump copies lines from queue to conn until the stream ends or ctx is done.
func (h *FeedHandler) pump(ctx context.Context, conn *websocket.Conn, queue *stream.Queue) (int64, error) {
	var sent int64
	for {
		line, err := queue.Next(ctx)
		if errors.Is(err, stream.ErrEnded) {
			return sent, h.write(ctx, conn, EndMessage())
		}
		if err != nil {
			return sent, err
		}

		if err := h.write(ctx, conn, LineMessage(line)); err != nil {
			return sent, err
		}
		sent++
		h.served.Add(1)
	}
}

func (h *FeedHandler) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
