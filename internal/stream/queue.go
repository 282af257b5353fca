// Package stream turns the registry, tree and source resolvers into an
// endless, order preserving stream of lines.
//
// A single producer goroutine owns every network facing component. It walks
// one repository at a time and pushes each line into a bounded channel,
// blocking while the channel is full. The consumer only ever reads that
// channel, so it never waits on the network itself.
//
// The producer writes through a revocable sink. Close revokes the sink,
// cancels the producer's context and waits for it to exit, so no request
// outlives the queue.
package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/registry"
	"github.com/conneroisu/typster/internal/source"
)

// DefaultBufferSize is the capacity of the line buffer.
const DefaultBufferSize = 10

// ErrEnded is returned by Next once the stream has no more lines.
var ErrEnded = errors.New("stream ended")

// State describes the outcome of TryNext.
type State int

const (
	// StateReady means a line was returned.
	StateReady State = iota
	// StateLoading means no line is buffered yet.
	StateLoading
	// StateEnded means the stream is over.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateLoading:
		return "loading"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// RepositorySource yields batches of repositories to walk.
type RepositorySource interface {
	Next(ctx context.Context) ([]registry.Repository, error)
}

// LineSource drains one repository.
type LineSource interface {
	Next(ctx context.Context) (source.Line, bool, error)
}

// WalkerFactory starts the walk of a repository.
type WalkerFactory func(repo registry.Repository) LineSource

// Stats counts what the producer has done so far.
type Stats struct {
	Lines        int64 `json:"lines"`
	Repositories int64 `json:"repositories"`
}

// Queue is the bounded producer/consumer line buffer.
type Queue struct {
	repos  RepositorySource
	walk   WalkerFactory
	logger logging.Logger

	lines chan source.Line
	sink  *sink
	done  chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	closed  atomic.Bool
	err     error

	delivered    atomic.Int64
	repositories atomic.Int64
}

// Option configures a Queue.
type Option func(*queueOptions)

type queueOptions struct {
	bufferSize int
	logger     logging.Logger
}

// WithBufferSize sets the line buffer capacity.
func WithBufferSize(n int) Option {
	return func(o *queueOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *queueOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a Queue. Nothing is fetched until Start.
func New(repos RepositorySource, walk WalkerFactory, opts ...Option) *Queue {
	o := queueOptions{bufferSize: DefaultBufferSize, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	lines := make(chan source.Line, o.bufferSize)
	return &Queue{
		repos:  repos,
		walk:   walk,
		logger: o.logger.WithComponent("stream"),
		lines:  lines,
		sink:   newSink(lines),
		done:   make(chan struct{}),
	}
}

// Start launches the producer. It is a no-op after the first call or after
// Close.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.closed.Load() {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	go q.produce(ctx)
}

// TryNext returns a buffered line without blocking.
func (q *Queue) TryNext() (source.Line, State) {
	if q.closed.Load() {
		return source.Line{}, StateEnded
	}

	select {
	case line, ok := <-q.lines:
		if !ok {
			return source.Line{}, StateEnded
		}
		return line, StateReady
	default:
		return source.Line{}, StateLoading
	}
}

// Next blocks until a line is available, the stream ends (ErrEnded) or ctx
// is done.
func (q *Queue) Next(ctx context.Context) (source.Line, error) {
	if q.closed.Load() {
		return source.Line{}, ErrEnded
	}

	select {
	case line, ok := <-q.lines:
		if !ok {
			return source.Line{}, ErrEnded
		}
		return line, nil
	case <-ctx.Done():
		return source.Line{}, ctx.Err()
	}
}

// Close stops the producer and waits for it to exit. It is safe to call more
// than once.
func (q *Queue) Close() error {
	q.closed.Store(true)
	q.sink.revoke()

	q.mu.Lock()
	cancel, started := q.cancel, q.started
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-q.done
	}
	return nil
}

// Done is closed once the producer has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Err returns the error that ended the stream, if any. Cancellation is not
// an error.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Stats returns the producer counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Lines:        q.delivered.Load(),
		Repositories: q.repositories.Load(),
	}
}

func (q *Queue) setErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

func (q *Queue) produce(ctx context.Context) {
	defer close(q.done)
	defer close(q.lines)

	var (
		pending []registry.Repository
		current LineSource
		origin  string
	)

	for {
		if ctx.Err() != nil || q.sink.revoked() {
			q.logger.Debug(ctx, "Producer stopped")
			return
		}

		if current == nil {
			if len(pending) == 0 {
				repos, err := q.repos.Next(ctx)
				if err != nil {
					q.finish(ctx, err)
					return
				}
				pending = repos
				continue
			}

			repo := pending[0]
			pending = pending[1:]
			current, origin = q.walk(repo), repo.Origin
			q.repositories.Add(1)
			q.logger.Info(ctx, "Walking repository", "origin", origin, "url", repo.TreeURL)
		}

		line, ok, err := current.Next(ctx)
		if err != nil {
			q.finish(ctx, err)
			return
		}
		if !ok {
			q.logger.Debug(ctx, "Repository exhausted", "origin", origin)
			current = nil
			continue
		}

		if !q.sink.send(ctx, line) {
			q.logger.Debug(ctx, "Sink revoked, producer stopping")
			return
		}
		q.delivered.Add(1)
	}
}

// finish records why the producer ended. Cancellation is silent.
func (q *Queue) finish(ctx context.Context, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}
	q.setErr(err)

	if terrors.IsExhausted(err) {
		q.logger.Info(ctx, "Registry exhausted, stream ended", "lines", q.delivered.Load())
		return
	}
	q.logger.Error(ctx, err, "Producer failed")
}
