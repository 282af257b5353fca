package testutils

import (
	"context"
	"net/http"
	"sync"

	terrors "github.com/conneroisu/typster/internal/errors"
)

// StaticFetcher serves canned bodies from memory and counts every call.
// Unknown URLs fail with a 404 network error.
type StaticFetcher struct {
	mu       sync.Mutex
	pages    map[string][]byte
	failures map[string][]error
	calls    map[string]int
	total    int

	// OnFetch, when set, runs after a call is counted and before it is served.
	OnFetch func(url string)
}

// NewStaticFetcher creates an empty StaticFetcher.
func NewStaticFetcher() *StaticFetcher {
	return &StaticFetcher{
		pages:    make(map[string][]byte),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// Set registers the body served for url.
func (f *StaticFetcher) Set(url, body string) *StaticFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = []byte(body)
	return f
}

// FailNext queues errors returned, one per call, before url is served.
func (f *StaticFetcher) FailNext(url string, errs ...error) *StaticFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[url] = append(f.failures[url], errs...)
	return f
}

// Fetch implements fetch.Fetcher.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[url]++
	f.total++
	hook := f.OnFetch
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if queued := f.failures[url]; len(queued) > 0 {
		f.failures[url] = queued[1:]
		return nil, queued[0]
	}

	body, ok := f.pages[url]
	if !ok {
		return nil, terrors.NewNetworkError(terrors.ErrCodeHTTPStatus, url, http.StatusNotFound, nil)
	}
	return append([]byte(nil), body...), nil
}

// Calls returns how often url was fetched.
func (f *StaticFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Total returns the number of fetches across all URLs.
func (f *StaticFetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// TransientError is a retryable network failure for url.
func TransientError(url string) error {
	return terrors.NewNetworkError(terrors.ErrCodeHTTPStatus, url, http.StatusServiceUnavailable, nil)
}
