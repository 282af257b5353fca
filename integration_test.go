package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/typster/internal/fetch"
	"github.com/conneroisu/typster/internal/server"
	"github.com/conneroisu/typster/internal/source"
	"github.com/conneroisu/typster/internal/stream"
	"github.com/conneroisu/typster/internal/testutils"
	feed "github.com/conneroisu/typster/internal/websocket"
)

func readFeed(t *testing.T, addr string) []source.Line {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/feed", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var lines []source.Line
	for {
		var msg feed.Message
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if msg.Type == feed.TypeEnd {
			return lines
		}
		lines = append(lines, source.Line{Text: msg.Text, Origin: msg.Origin})
	}
}

func TestIntegration_CachedFeeds(t *testing.T) {
	site := testutils.NewFakeSite(t)
	site.AddRepo("acme/alpha",
		testutils.FileSpec{Path: "src/lib.rs", Content: testutils.Source(testutils.NumberedLines("alpha_lib", 3)...)},
		testutils.FileSpec{Path: "src/util/mod.rs", Content: testutils.Source(testutils.NumberedLines("alpha_util", 2)...)},
	)
	site.AddRepo("acme/beta",
		testutils.FileSpec{Path: "lib.rs", Content: testutils.Source(testutils.NumberedLines("beta_lib", 2)...)},
	)
	site.AddPage(site.HostedCrate("alpha", "acme/alpha"), testutils.ExternalCrate("gamma", "https://gitlab.com/acme/gamma"))
	site.AddPage(site.HostedCrate("beta", "acme/beta"))

	mr := miniredis.RunT(t)

	cfg := testutils.CreateTestConfig(t, site)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Cache.RedisURL = "redis://" + mr.Addr()
	cfg.Cache.TTL = time.Minute

	fetcher, closeFetcher, err := fetch.NewFromConfig(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFetcher() })

	srv := server.New(cfg, func() (*stream.Queue, error) {
		return stream.NewFromConfig(cfg, fetcher, nil)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-errc:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	var want []source.Line
	for _, text := range testutils.NumberedLines("alpha_lib", 3) {
		want = append(want, source.Line{Text: text, Origin: "alpha"})
	}
	for _, text := range testutils.NumberedLines("alpha_util", 2) {
		want = append(want, source.Line{Text: text, Origin: "alpha"})
	}
	for _, text := range testutils.NumberedLines("beta_lib", 2) {
		want = append(want, source.Line{Text: text, Origin: "beta"})
	}

	assert.Equal(t, want, readFeed(t, srv.Addr()))
	hits := site.TotalHits()
	assert.Greater(t, hits, 0)

	// every page is now cached, so a second feed replays without the site
	assert.Equal(t, want, readFeed(t, srv.Addr()))
	assert.Equal(t, hits, site.TotalHits())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	var status server.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, int64(len(want)*2), status.Lines)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(server.ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
