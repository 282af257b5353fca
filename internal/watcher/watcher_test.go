package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestDebouncerCollapsesBurst(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "b.yml"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "a.yml"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.yml"})

	select {
	case events := <-d.Output():
		assert.Equal(t, []ChangeEvent{
			{Type: EventTypeModified, Path: "a.yml"},
			{Type: EventTypeModified, Path: "b.yml"},
		}, events)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}

	select {
	case events := <-d.Output():
		t.Fatalf("unexpected second batch: %v", events)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerStopDiscards(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add(ChangeEvent{Path: "a.yml"})
	d.Stop()
	d.Add(ChangeEvent{Path: "b.yml"})

	select {
	case events := <-d.Output():
		t.Fatalf("unexpected batch after stop: %v", events)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSameFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, ".typster.yml")
	filter := SameFile(target)

	assert.True(t, filter(target))
	assert.True(t, filter(filepath.Join(dir, "sub", "..", ".typster.yml")))
	assert.False(t, filter(filepath.Join(dir, ".typster.yml.swp")))
	assert.False(t, filter(filepath.Join(dir, "other.yml")))
}

func TestFileWatcherReportsConfigChanges(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, ".typster.yml")
	require.NoError(t, os.WriteFile(target, []byte("log:\n  level: info\n"), 0o644))

	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	var (
		mu      sync.Mutex
		batches [][]ChangeEvent
	)
	fw.AddFilter(SameFile(target))
	fw.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, events)
		return nil
	})
	require.NoError(t, fw.AddPath(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))
	assert.ErrorIs(t, fw.Start(ctx), ErrStarted)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("log:\n  level: debug\n"), 0o644))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, batch := range batches {
		require.Len(t, batch, 1)
		assert.Equal(t, target, batch[0].Path)
	}
}

func TestFileWatcherAddPathMissing(t *testing.T) {
	fw, err := NewFileWatcher(0, nil)
	require.NoError(t, err)
	defer fw.Stop()

	assert.Error(t, fw.AddPath(filepath.Join(t.TempDir(), "missing")))
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}
