// Package registry pages through the package index and yields the hosted
// repositories it references.
package registry

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/conneroisu/typster/internal/config"
	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/fetch"
	"github.com/conneroisu/typster/internal/logging"
)

// Repository is a crate whose source is hosted on the code hosting site.
type Repository struct {
	// Origin is the crate identifier reported with every line.
	Origin string `json:"origin" yaml:"origin"`
	// TreeURL is the root of the repository's file tree.
	TreeURL string `json:"tree_url" yaml:"tree_url"`
}

// page is the decoded body of one index page.
type page struct {
	Crates []struct {
		ID         string  `json:"id"`
		Repository *string `json:"repository"`
	} `json:"crates"`
}

// Paginator walks the index one page at a time. It is not safe for
// concurrent use.
type Paginator struct {
	fetcher  fetch.Fetcher
	baseURL  string
	sort     string
	host     string
	page     int
	maxEmpty int
	seen     map[string]bool
	logger   logging.Logger
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithSort sets the index ordering.
func WithSort(sort string) Option {
	return func(p *Paginator) {
		p.sort = sort
	}
}

// WithHost keeps only repositories whose URL contains host.
func WithHost(host string) Option {
	return func(p *Paginator) {
		if host != "" {
			p.host = host
		}
	}
}

// WithStartPage sets the first page fetched by Next.
func WithStartPage(n int) Option {
	return func(p *Paginator) {
		if n > 0 {
			p.page = n
		}
	}
}

// WithMaxEmptyPages sets how many consecutive empty or failed pages end the
// index.
func WithMaxEmptyPages(n int) Option {
	return func(p *Paginator) {
		if n > 0 {
			p.maxEmpty = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Paginator) {
		if logger != nil {
			p.logger = logger.WithComponent("registry")
		}
	}
}

// NewPaginator creates a Paginator over the index at baseURL.
func NewPaginator(fetcher fetch.Fetcher, baseURL string, opts ...Option) *Paginator {
	p := &Paginator{
		fetcher:  fetcher,
		baseURL:  baseURL,
		sort:     config.DefaultRegistrySort,
		host:     config.DefaultRegistryHost,
		page:     1,
		maxEmpty: config.DefaultMaxEmptyPages,
		seen:     make(map[string]bool),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPaginatorFromConfig creates a Paginator from the registry section of
// the configuration.
func NewPaginatorFromConfig(fetcher fetch.Fetcher, cfg config.RegistryConfig, logger logging.Logger) *Paginator {
	return NewPaginator(fetcher, cfg.URL,
		WithSort(cfg.Sort),
		WithHost(cfg.Host),
		WithStartPage(cfg.StartPage),
		WithMaxEmptyPages(cfg.MaxEmptyPages),
		WithLogger(logger),
	)
}

// Page returns the number of the next page Next will fetch.
func (p *Paginator) Page() int {
	return p.page
}

// PageURL returns the request URL for page n.
func (p *Paginator) PageURL(n int) (string, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if p.sort != "" {
		q.Set("sort", p.sort)
	}
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage fetches page n and returns its hosted repositories in index
// order. A page without any is not an error.
func (p *Paginator) FetchPage(ctx context.Context, n int) ([]Repository, error) {
	pageURL, err := p.PageURL(n)
	if err != nil {
		return nil, terrors.NewParseError(terrors.ErrCodeInvalidURL, p.baseURL, "invalid registry url", err)
	}

	body, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var decoded page
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, terrors.NewParseError(terrors.ErrCodeMalformedJSON, pageURL, "unreadable registry page", err)
	}

	var repos []Repository
	for _, c := range decoded.Crates {
		if c.Repository == nil || !strings.Contains(*c.Repository, p.host) {
			continue
		}
		repos = append(repos, Repository{Origin: c.ID, TreeURL: NormalizeRepoURL(*c.Repository)})
	}

	return repos, nil
}

// Next returns the repositories of the next page that has any not returned
// before. Empty pages are skipped. A page that failed transiently is fetched
// again under the same number; one that can never load (unreadable body, 404)
// is skipped like an empty page. All of these count toward the empty page
// limit, and reaching it yields an exhaustion error.
func (p *Paginator) Next(ctx context.Context) ([]Repository, error) {
	empty := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := p.page
		repos, err := p.FetchPage(ctx, current)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			empty++
			if fetch.Transient(err) {
				p.logger.Warn(ctx, err, "Registry page failed", "page", current, "empty_pages", empty)
				break
			}
			p.page++
			p.logger.Warn(ctx, err, "Registry page skipped", "page", current, "empty_pages", empty)
		default:
			p.page++
			if fresh := p.unseen(repos); len(fresh) > 0 {
				p.logger.Debug(ctx, "Registry page", "page", current, "repositories", len(fresh))
				return fresh, nil
			}
			empty++
			p.logger.Debug(ctx, "Registry page had no usable repositories", "page", current, "empty_pages", empty)
		}

		if empty >= p.maxEmpty {
			return nil, terrors.NewExhaustionError(current, empty)
		}
	}
}

// unseen drops repositories already returned, e.g. sibling crates of one
// workspace.
func (p *Paginator) unseen(repos []Repository) []Repository {
	fresh := repos[:0:0]
	for _, r := range repos {
		if p.seen[r.TreeURL] {
			continue
		}
		p.seen[r.TreeURL] = true
		fresh = append(fresh, r)
	}
	return fresh
}

// NormalizeRepoURL strips a trailing slash and .git suffix.
func NormalizeRepoURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")
	return strings.TrimSuffix(u, "/")
}
