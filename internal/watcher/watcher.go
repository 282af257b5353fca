// Package watcher reports debounced file changes.
//
// It is used to pick up edits to the configuration file while the feed
// server is running. Editors often replace a file instead of writing it in
// place, so callers watch the parent directory and filter by name.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/typster/internal/logging"
)

// DefaultDebounce is the quiet period before a batch of changes is reported.
const DefaultDebounce = 200 * time.Millisecond

// ErrStarted is returned by Start when the watcher is already running.
var ErrStarted = errors.New("watcher already started")

// EventType is the kind of a change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent is one observed change.
type ChangeEvent struct {
	Type EventType
	Path string
}

// FileFilter selects the paths a watcher reports.
type FileFilter func(path string) bool

// ChangeHandler receives one debounced batch, at most one event per path.
type ChangeHandler func(events []ChangeEvent) error

// FileWatcher wraps an fsnotify watcher with filtering and debouncing.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger

	mu       sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler
	started  bool

	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewFileWatcher creates a FileWatcher that reports after delay of quiet.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &FileWatcher{
		watcher:   w,
		debouncer: NewDebouncer(delay),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a filter. A path is reported only if every filter accepts it.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a handler for debounced batches.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath watches a file or directory.
func (fw *FileWatcher) AddPath(path string) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := fw.watcher.Add(abs); err != nil {
		return fmt.Errorf("watching %s: %w", abs, err)
	}
	return nil
}

// Start begins delivering events until ctx ends or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.started {
		return ErrStarted
	}
	fw.started = true

	ctx, fw.cancel = context.WithCancel(ctx)
	fw.wg.Add(2)
	go func() {
		defer fw.wg.Done()
		fw.watchLoop(ctx)
	}()
	go func() {
		defer fw.wg.Done()
		fw.dispatch(ctx)
	}()
	return nil
}

// Stop ends delivery and releases the underlying watcher.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.mu.RLock()
		cancel := fw.cancel
		fw.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
		fw.debouncer.Stop()
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if change, keep := fw.convert(event); keep {
				fw.debouncer.Add(change)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) convert(event fsnotify.Event) (ChangeEvent, bool) {
	fw.mu.RLock()
	filters := fw.filters
	fw.mu.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return ChangeEvent{}, false
		}
	}

	var typ EventType
	switch {
	case event.Has(fsnotify.Create):
		typ = EventTypeCreated
	case event.Has(fsnotify.Write):
		typ = EventTypeModified
	case event.Has(fsnotify.Remove):
		typ = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		typ = EventTypeRenamed
	case event.Has(fsnotify.Chmod):
		return ChangeEvent{}, false
	default:
		typ = EventTypeModified
	}

	return ChangeEvent{Type: typ, Path: event.Name}, true
}

func (fw *FileWatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.Output():
			fw.mu.RLock()
			handlers := fw.handlers
			fw.mu.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Warn(ctx, err, "Change handler failed", "events", len(events))
				}
			}
		}
	}
}

// Debouncer collapses a burst of events into one batch, emitted once no new
// event has arrived for the configured delay.
type Debouncer struct {
	delay  time.Duration
	output chan []ChangeEvent

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]ChangeEvent
	stopped bool
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		output:  make(chan []ChangeEvent, 10),
		pending: make(map[string]ChangeEvent),
	}
}

// Add records an event and restarts the quiet period. The latest event per
// path wins.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending[event.Path] = event
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// Output delivers batches sorted by path.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Stop discards pending events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]ChangeEvent)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
		d.pending = make(map[string]ChangeEvent)
	default:
		// consumer is behind; keep the batch and retry after another delay
		d.timer = time.AfterFunc(d.delay, d.flush)
	}
}

// SameFile accepts only events for path.
func SameFile(path string) FileFilter {
	want, err := filepath.Abs(path)
	if err != nil {
		want = filepath.Clean(path)
	}
	return func(name string) bool {
		got, err := filepath.Abs(name)
		if err != nil {
			return false
		}
		return got == want
	}
}
