package source

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/testutils"
)

func TestResolveFollowsRawLink(t *testing.T) {
	site := testutils.NewFakeSite(t)
	site.AddRepo("acme/widgets", testutils.FileSpec{
		Path:    "src/lib.rs",
		Content: testutils.Source("// header comment goes here", "pub fn answer() -> u32 {", "    42", "}"),
	})

	r, err := NewResolver(testFetcher(t), site.URL(), DefaultFilter(), nil)
	require.NoError(t, err)

	file, err := r.Resolve(context.Background(), site.BlobURL("acme/widgets", "src/lib.rs"))
	require.NoError(t, err)

	line, ok := file.Next()
	require.True(t, ok)
	assert.Equal(t, "pub fn answer() -> u32 {", line)
	_, ok = file.Next()
	assert.False(t, ok)
	assert.Equal(t, 1, site.Hits("/acme/widgets/raw/main/src/lib.rs"))
}

func TestResolveWithoutRawLinkIsEmpty(t *testing.T) {
	site := testutils.NewFakeSite(t)
	site.AddRepo("acme/widgets", testutils.FileSpec{Path: "src/big.rs", Content: "fn huge() {}", NoRawLink: true})

	r, err := NewResolver(testFetcher(t), site.URL(), DefaultFilter(), nil)
	require.NoError(t, err)

	file, err := r.Resolve(context.Background(), site.BlobURL("acme/widgets", "src/big.rs"))
	require.NoError(t, err)
	assert.Equal(t, 0, file.Remaining())
	assert.Equal(t, 1, site.TotalHits())
}

func TestResolvePropagatesNetworkErrors(t *testing.T) {
	fetcher := testutils.NewStaticFetcher().
		Set("https://h/o/r/blob/main/a.rs", `<a id="raw-url" href="/o/r/raw/main/a.rs">Raw</a>`)

	r, err := NewResolver(fetcher, "https://h", DefaultFilter(), nil)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "https://h/o/r/blob/main/a.rs")
	require.Error(t, err)
	assert.True(t, terrors.IsNetwork(err))
	assert.Equal(t, 1, fetcher.Calls("https://h/o/r/raw/main/a.rs"))

	_, err = r.Resolve(context.Background(), "https://h/o/r/blob/main/missing.rs")
	assert.True(t, terrors.IsNetwork(err))
}

func TestExtractRawURL(t *testing.T) {
	host, _ := url.Parse("https://github.com")

	tests := []struct {
		name string
		page string
		want string
		ok   bool
	}{
		{"relative", `<a id="raw-url" href="/o/r/raw/main/src/x.rs">Raw</a>`, "https://github.com/o/r/raw/main/src/x.rs", true},
		{"absolute", `<a id="raw-url" href="https://raw.example/x.rs">Raw</a>`, "https://raw.example/x.rs", true},
		{"no link", `<a href="/o/r/raw/main/src/x.rs">Raw</a>`, "", false},
		{"no href", `<a id="raw-url">Raw</a>`, "", false},
		{"not an anchor", `<div id="raw-url" href="/o/r/raw/main/src/x.rs">Raw</div>`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ExtractRawURL([]byte(tt.page), host)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewResolverRejectsRelativeHost(t *testing.T) {
	_, err := NewResolver(testutils.NewStaticFetcher(), "/relative", DefaultFilter(), nil)
	assert.Error(t, err)
}
