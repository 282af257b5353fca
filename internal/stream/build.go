package stream

import (
	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/fetch"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/registry"
	"github.com/conneroisu/typster/internal/source"
	"github.com/conneroisu/typster/internal/tree"
)

// NewFromConfig wires the paginator, resolvers and walker factory described
// by cfg around fetcher.
func NewFromConfig(cfg *config.Config, fetcher fetch.Fetcher, logger logging.Logger) (*Queue, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	files, err := source.NewResolver(fetcher, cfg.Crawl.HostURL, source.NewFilter(cfg.Filter), logger)
	if err != nil {
		return nil, err
	}

	crawler := tree.NewCrawler(
		tree.NewResolver(fetcher, cfg.Crawl.Extension, logger),
		files,
		tree.WithMaxAttempts(cfg.Crawl.MaxResolveAttempts),
		tree.WithLogger(logger),
	)

	paginator := registry.NewPaginatorFromConfig(fetcher, cfg.Registry, logger)

	return New(paginator, CrawlerFactory(crawler),
		WithBufferSize(cfg.Crawl.BufferSize),
		WithLogger(logger),
	), nil
}

// CrawlerFactory walks each repository with crawler.
func CrawlerFactory(crawler *tree.Crawler) WalkerFactory {
	return func(repo registry.Repository) LineSource {
		return crawler.Walk(repo.Origin, repo.TreeURL)
	}
}
