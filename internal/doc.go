// Package internal contains the implementation packages for typster.
//
// # Package Organization
//
//   - registry: crates.io page fetching, filtering and exhaustion
//   - tree: lazy depth-first walk of a hosted repository
//   - source: raw file resolution and the line filter
//   - stream: the bounded line queue fed by a producer goroutine
//   - fetch: HTTP fetching with retries, pacing and an optional Redis cache
//   - markup: the small HTML element API the walker and resolver query
//   - server, websocket: the /feed WebSocket server and /healthz
//   - watcher: debounced file watching for configuration reload
//   - config, logging, errors, version: ambient support
//
// # Data Flow
//
// The stream producer asks the registry paginator for repositories, walks
// each one with a tree walker and resolves every source file into filtered
// lines. Lines are pushed into a bounded channel that consumers drain with
// Next. Every HTTP request goes through a single fetch.Fetcher so pacing,
// retries and caching apply everywhere.
package internal
