// Package source resolves a file reference into the filtered lines of the
// file it points at.
//
// Resolution is a two step fetch: the viewer page names the raw content
// through its raw-url link, and the raw content is split, trimmed and
// filtered. A viewer page without the link yields an empty File.
package source

import (
	"context"
	"fmt"
	"net/url"

	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/fetch"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/markup"
)

// File holds the kept lines of one source file and hands them out in order.
type File struct {
	URL   string
	lines []string
	next  int
}

// NewFile creates a File over lines.
func NewFile(url string, lines []string) *File {
	return &File{URL: url, lines: lines}
}

// Next returns the next line, or false once the file is exhausted.
func (f *File) Next() (string, bool) {
	if f.next >= len(f.lines) {
		return "", false
	}
	line := f.lines[f.next]
	f.next++
	return line, true
}

// Remaining returns how many lines are left.
func (f *File) Remaining() int {
	return len(f.lines) - f.next
}

// Resolver turns viewer page URLs into Files.
type Resolver struct {
	fetcher fetch.Fetcher
	host    *url.URL
	filter  Filter
	logger  logging.Logger
}

// NewResolver creates a Resolver. Raw links are resolved against hostURL.
func NewResolver(fetcher fetch.Fetcher, hostURL string, filter Filter, logger logging.Logger) (*Resolver, error) {
	host, err := url.Parse(hostURL)
	if err != nil || host.Host == "" {
		return nil, terrors.NewValidationError(terrors.ErrCodeInvalidURL, fmt.Sprintf("invalid host url %q", hostURL))
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Resolver{
		fetcher: fetcher,
		host:    host,
		filter:  filter,
		logger:  logger.WithComponent("source"),
	}, nil
}

// Resolve fetches the viewer page at fileURL, follows its raw link and
// returns the filtered lines.
func (r *Resolver) Resolve(ctx context.Context, fileURL string) (*File, error) {
	page, err := r.fetcher.Fetch(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	rawURL, ok, err := ExtractRawURL(page, r.host)
	if err != nil {
		return nil, terrors.NewParseError(terrors.ErrCodeMalformedHTML, fileURL, "unreadable file viewer page", err)
	}
	if !ok {
		r.logger.Debug(ctx, "No raw link on viewer page", "url", fileURL)
		return NewFile(fileURL, nil), nil
	}

	content, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	lines := r.filter.Lines(content)
	r.logger.Debug(ctx, "Resolved file", "url", fileURL, "lines", len(lines))

	return NewFile(fileURL, lines), nil
}

// ExtractRawURL finds the href of the anchor with id "raw-url" and resolves
// it against host. It reports false when the page has no usable link.
func ExtractRawURL(page []byte, host *url.URL) (string, bool, error) {
	doc, err := markup.Parse(page)
	if err != nil {
		return "", false, err
	}

	link := doc.Find(markup.All(markup.Tag("a"), markup.AttrEquals("id", "raw-url")))
	if link == nil {
		return "", false, nil
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return "", false, nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false, fmt.Errorf("invalid raw link %q: %w", href, err)
	}

	return host.ResolveReference(ref).String(), true, nil
}
