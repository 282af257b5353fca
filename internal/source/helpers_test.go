package source

import (
	"testing"
	"time"

	"github.com/conneroisu/typster/internal/fetch"
)

func testFetcher(t *testing.T) fetch.Fetcher {
	t.Helper()
	return fetch.NewClient(
		fetch.WithRequestInterval(0),
		fetch.WithRetry(1, time.Millisecond, time.Millisecond),
		fetch.WithTimeout(5*time.Second),
	)
}
