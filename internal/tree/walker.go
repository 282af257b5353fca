package tree

import (
	"context"

	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/source"
)

// DefaultMaxAttempts bounds how often a reference that fails with a network
// error is tried before it is dropped.
const DefaultMaxAttempts = 3

// NodeResolver resolves a listing URL into a Node.
type NodeResolver interface {
	Resolve(ctx context.Context, url string) (*Node, error)
}

// FileResolver resolves a file URL into its filtered lines.
type FileResolver interface {
	Resolve(ctx context.Context, url string) (*source.File, error)
}

// Crawler creates Walkers that share resolvers and retry policy.
type Crawler struct {
	nodes       NodeResolver
	files       FileResolver
	maxAttempts int
	logger      logging.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxAttempts sets how often a failing reference is tried.
func WithMaxAttempts(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithLogger sets the logger for dropped references.
func WithLogger(logger logging.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCrawler creates a Crawler.
func NewCrawler(nodes NodeResolver, files FileResolver, opts ...Option) *Crawler {
	c := &Crawler{
		nodes:       nodes,
		files:       files,
		maxAttempts: DefaultMaxAttempts,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Walk returns a Walker over the repository tree rooted at treeURL. Nothing
// is fetched until the first call to Next.
func (c *Crawler) Walk(origin, treeURL string) *Walker {
	logger := c.logger.WithComponent("walker").With("origin", origin)

	// The root is held as a folder of a synthetic node so that it is retried
	// and dropped like any other folder.
	root := &Node{Folders: []*Ref[*Node]{NewRef[*Node](treeURL)}}

	return &Walker{
		origin:      origin,
		nodes:       c.nodes,
		files:       c.files,
		maxAttempts: c.maxAttempts,
		logger:      logger,
		errs:        terrors.NewErrorHandler(logger),
		stack:       []*Node{root},
	}
}

// Walker drains one repository line by line. Within a node every line of
// the head file is delivered before the next file is touched, and all files
// are drained before the walk descends into the node's folders. A drained
// node is popped and never revisited.
//
// A Walker is not safe for concurrent use.
type Walker struct {
	origin      string
	nodes       NodeResolver
	files       FileResolver
	maxAttempts int
	logger      logging.Logger
	errs        *terrors.ErrorHandler
	stack       []*Node
}

// Origin returns the crate the walked repository belongs to.
func (w *Walker) Origin() string {
	return w.origin
}

// Done reports whether the whole tree has been drained.
func (w *Walker) Done() bool {
	return len(w.stack) == 0
}

// Next returns the next line of the repository. It returns false once the
// tree is exhausted, and an error only when ctx ends.
func (w *Walker) Next(ctx context.Context) (source.Line, bool, error) {
	for len(w.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return source.Line{}, false, err
		}

		node := w.stack[len(w.stack)-1]

		if len(node.Files) > 0 {
			file, err := node.Files[0].Get(ctx, w.files.Resolve)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return source.Line{}, false, ctxErr
				}
				node.Files = settle(ctx, w, node.Files, err)
				continue
			}

			if text, ok := file.Next(); ok {
				return source.Line{Text: text, Origin: w.origin}, true, nil
			}
			node.Files = node.Files[1:]
			continue
		}

		if len(node.Folders) > 0 {
			child, err := node.Folders[0].Get(ctx, w.nodes.Resolve)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return source.Line{}, false, ctxErr
				}
				node.Folders = settle(ctx, w, node.Folders, err)
				continue
			}

			node.Folders = node.Folders[1:]
			w.stack = append(w.stack, child)
			continue
		}

		w.stack[len(w.stack)-1] = nil
		w.stack = w.stack[:len(w.stack)-1]
	}

	return source.Line{}, false, nil
}

// settle handles a failed head reference. A network failure moves it to the
// tail of seq while attempts remain; anything else drops it.
func settle[T any](ctx context.Context, w *Walker, seq []*Ref[T], err error) []*Ref[T] {
	head := seq[0]
	rest := seq[1:]

	if terrors.IsNetwork(err) && head.Attempts() < w.maxAttempts {
		w.logger.Debug(ctx, "Requeued reference", "url", head.URL, "attempts", head.Attempts(), "error", err.Error())
		return append(rest, head)
	}

	w.errs.Handle(ctx, err, "origin", w.origin, "ref", head.URL, "attempts", head.Attempts())
	return rest
}
