package tree

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/testutils"
)

const listingPage = `<html><body><div role="grid">
<div role="rowheader"><a rel="nofollow" href="/o/r">..</a></div>
<div role="rowheader"><a href="/o/r/tree/main/src/util">util</a></div>
<div role="rowheader"><a href="/o/r/blob/main/src/lib.rs">lib.rs</a></div>
<div role="rowheader"><a href="/o/r/blob/main/src/README.md">README.md</a></div>
<div role="rowheader"><a href="https://other.example/o/r/blob/main/src/abs.rs">abs.rs</a></div>
<div role="rowheader"><a href="/o/r/blob/main/src/lib.rs">lib.rs again</a></div>
<div role="rowheader"><a href="/o/r/tree/main/src/blob/odd.rs">odd.rs</a></div>
<div role="rowheader"><a>no href</a></div>
</div>
<a href="/o/r/blob/main/src/outside.rs">not in a rowheader</a>
</body></html>`

func TestParseListing(t *testing.T) {
	base, _ := url.Parse("https://h/o/r/tree/main/src")

	files, folders, err := ParseListing([]byte(listingPage), base, ".rs")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://h/o/r/blob/main/src/lib.rs",
		"https://other.example/o/r/blob/main/src/abs.rs",
		"https://h/o/r/tree/main/src/blob/odd.rs",
	}, files)
	assert.Equal(t, []string{"https://h/o/r/tree/main/src/util"}, folders)
}

func TestParseListingExtension(t *testing.T) {
	base, _ := url.Parse("https://h/o/r")

	files, _, err := ParseListing([]byte(listingPage), base, ".md")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://h/o/r/blob/main/src/README.md"}, files)
}

func TestResolverBuildsUnresolvedNode(t *testing.T) {
	fetcher := testutils.NewStaticFetcher().Set("https://h/o/r/tree/main/src", listingPage)
	r := NewResolver(fetcher, ".rs", nil)

	node, err := r.Resolve(context.Background(), "https://h/o/r/tree/main/src")
	require.NoError(t, err)

	require.Len(t, node.Files, 3)
	require.Len(t, node.Folders, 1)
	for _, f := range node.Files {
		assert.False(t, f.Resolved())
	}
	assert.Equal(t, 1, fetcher.Total(), "entries are not fetched eagerly")
}

func TestResolverPropagatesNetworkError(t *testing.T) {
	r := NewResolver(testutils.NewStaticFetcher(), ".rs", nil)

	_, err := r.Resolve(context.Background(), "https://h/missing")
	assert.True(t, terrors.IsNetwork(err))
}

func TestRefMemoizes(t *testing.T) {
	calls := 0
	resolve := func(_ context.Context, u string) (string, error) {
		calls++
		if calls == 1 {
			return "", testutils.TransientError(u)
		}
		return "value:" + u, nil
	}

	ref := NewRef[string]("x")
	_, err := ref.Get(context.Background(), resolve)
	require.Error(t, err)
	assert.False(t, ref.Resolved())

	for i := 0; i < 3; i++ {
		v, err := ref.Get(context.Background(), resolve)
		require.NoError(t, err)
		assert.Equal(t, "value:x", v)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, ref.Attempts())
}
