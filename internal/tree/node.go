// Package tree walks the file tree of one hosted repository.
//
// A Node is one directory listing. Its file and folder entries are lazy
// references, so a listing is only fetched when the walk first reaches it
// and a file only when its lines are needed. The Walker drains a repository
// one line at a time using an explicit stack of nodes.
package tree

import (
	"context"
	"net/url"
	"strings"

	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/fetch"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/markup"
	"github.com/conneroisu/typster/internal/source"
)

// Node is one directory level of a repository, entries in listing order.
type Node struct {
	URL     string
	Files   []*Ref[*source.File]
	Folders []*Ref[*Node]
}

// NewNode creates a node with unresolved references to files and folders.
func NewNode(url string, files, folders []string) *Node {
	n := &Node{
		URL:     url,
		Files:   make([]*Ref[*source.File], 0, len(files)),
		Folders: make([]*Ref[*Node], 0, len(folders)),
	}
	for _, f := range files {
		n.Files = append(n.Files, NewRef[*source.File](f))
	}
	for _, f := range folders {
		n.Folders = append(n.Folders, NewRef[*Node](f))
	}
	return n
}

// Drained reports whether the node has no entries left.
func (n *Node) Drained() bool {
	return len(n.Files) == 0 && len(n.Folders) == 0
}

// Resolver fetches and classifies directory listings.
type Resolver struct {
	fetcher   fetch.Fetcher
	extension string
	logger    logging.Logger
}

// NewResolver creates a Resolver that keeps files ending in extension.
func NewResolver(fetcher fetch.Fetcher, extension string, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		fetcher:   fetcher,
		extension: extension,
		logger:    logger.WithComponent("tree"),
	}
}

// Resolve fetches the listing at treeURL and returns its node.
func (r *Resolver) Resolve(ctx context.Context, treeURL string) (*Node, error) {
	base, err := url.Parse(treeURL)
	if err != nil {
		return nil, terrors.NewParseError(terrors.ErrCodeInvalidURL, treeURL, "invalid tree url", err)
	}

	page, err := r.fetcher.Fetch(ctx, treeURL)
	if err != nil {
		return nil, err
	}

	files, folders, err := ParseListing(page, base, r.extension)
	if err != nil {
		return nil, terrors.NewParseError(terrors.ErrCodeMalformedHTML, treeURL, "unreadable tree listing", err)
	}

	r.logger.Debug(ctx, "Resolved tree", "url", treeURL, "files", len(files), "folders", len(folders))
	return NewNode(treeURL, files, folders), nil
}

// ParseListing classifies the entry links of a listing page. Candidates are
// anchors beneath a role="rowheader" element that have an href and no rel
// attribute. An href containing /blob/ and ending in extension is a file;
// otherwise one containing /tree/ is a folder. Links are resolved against
// base and each is reported once, in page order.
func ParseListing(page []byte, base *url.URL, extension string) (files, folders []string, err error) {
	doc, err := markup.Parse(page)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	for _, row := range doc.FindAll(markup.AttrEquals("role", "rowheader")) {
		for _, a := range row.FindAll(markup.Tag("a")) {
			if a.HasAttr("rel") {
				continue
			}
			href, ok := a.Attr("href")
			if !ok || href == "" {
				continue
			}

			isFile := strings.Contains(href, "/blob/") && strings.HasSuffix(href, extension)
			isFolder := !isFile && strings.Contains(href, "/tree/")
			if !isFile && !isFolder {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			abs := base.ResolveReference(ref).String()
			if seen[abs] {
				continue
			}
			seen[abs] = true

			if isFile {
				files = append(files, abs)
			} else {
				folders = append(folders, abs)
			}
		}
	}

	return files, folders, nil
}
