package tree

import (
	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/fetch"
)

func newFetcher(cfg *config.Config) fetch.Fetcher {
	return fetch.NewClientFromConfig(cfg.HTTP, nil)
}
