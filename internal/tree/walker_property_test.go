//go:build property
// +build property

package tree

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/typster/internal/source"
	"github.com/conneroisu/typster/internal/testutils"
)

type genDir struct {
	path    string
	files   map[string][]string
	order   []string
	folders []*genDir
}

// buildTree creates a random directory tree and registers its pages.
func buildTree(rng *rand.Rand, fetcher *testutils.StaticFetcher, dirPath string, depth int, counter *int) *genDir {
	d := &genDir{path: dirPath, files: map[string][]string{}}

	var hrefs []string
	for i := rng.Intn(4); i > 0; i-- {
		*counter++
		name := fmt.Sprintf("%s/f%d.rs", dirPath, *counter)
		lines := testutils.NumberedLines(fmt.Sprintf("f%d", *counter), rng.Intn(4))
		d.files[name] = lines
		d.order = append(d.order, name)

		fetcher.Set("https://h/o/r/blob/main"+name, fmt.Sprintf(`<a id="raw-url" href="/o/r/raw/main%s">Raw</a>`, name))
		fetcher.Set("https://h/o/r/raw/main"+name, testutils.Source(lines...))
		hrefs = append(hrefs, "/o/r/blob/main"+name)
	}
	if depth > 0 {
		for i := rng.Intn(3); i > 0; i-- {
			*counter++
			sub := fmt.Sprintf("%s/d%d", dirPath, *counter)
			d.folders = append(d.folders, buildTree(rng, fetcher, sub, depth-1, counter))
			hrefs = append(hrefs, "/o/r/tree/main"+sub)
		}
	}

	// folders listed first, as the hosting site does
	var b strings.Builder
	for _, h := range hrefs {
		if strings.Contains(h, "/tree/") {
			fmt.Fprintf(&b, `<div role="rowheader"><a href="%s">x</a></div>`, h)
		}
	}
	for _, h := range hrefs {
		if strings.Contains(h, "/blob/") {
			fmt.Fprintf(&b, `<div role="rowheader"><a href="%s">x</a></div>`, h)
		}
	}
	fetcher.Set(treeURL(dirPath), "<html><body>"+b.String()+"</body></html>")

	return d
}

func treeURL(dirPath string) string {
	if dirPath == "" {
		return "https://h/o/r"
	}
	return "https://h/o/r/tree/main" + dirPath
}

// expected is the reference order: a node's files, then its folders in turn.
func expected(d *genDir) []string {
	var out []string
	for _, name := range d.order {
		out = append(out, d.files[name]...)
	}
	for _, f := range d.folders {
		out = append(out, expected(f)...)
	}
	return out
}

func TestWalkerOrderProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("walk matches files-then-folders depth order", prop.ForAll(
		func(seed int64) bool {
			fetcher := testutils.NewStaticFetcher()
			counter := 0
			root := buildTree(rand.New(rand.NewSource(seed)), fetcher, "", 3, &counter)

			files, err := source.NewResolver(fetcher, "https://h", source.DefaultFilter(), nil)
			if err != nil {
				return false
			}
			w := NewCrawler(NewResolver(fetcher, ".rs", nil), files).Walk("crate", treeURL(""))

			var got []string
			for {
				line, ok, err := w.Next(context.Background())
				if err != nil {
					return false
				}
				if !ok {
					break
				}
				got = append(got, line.Text)
			}

			want := expected(root)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 1<<40),
	))

	properties.Property("every page is fetched at most once", prop.ForAll(
		func(seed int64) bool {
			fetcher := testutils.NewStaticFetcher()
			counter := 0
			root := buildTree(rand.New(rand.NewSource(seed)), fetcher, "", 3, &counter)

			files, _ := source.NewResolver(fetcher, "https://h", source.DefaultFilter(), nil)
			w := NewCrawler(NewResolver(fetcher, ".rs", nil), files).Walk("crate", treeURL(""))

			for {
				_, ok, err := w.Next(context.Background())
				if err != nil {
					return false
				}
				if !ok {
					break
				}
			}

			// one listing per directory plus viewer and raw page per file
			dirs, nfiles := root.count()
			return fetcher.Total() == dirs+2*nfiles
		},
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}

func (d *genDir) count() (dirs, files int) {
	dirs, files = 1, len(d.order)
	for _, f := range d.folders {
		fd, ff := f.count()
		dirs += fd
		files += ff
	}
	return dirs, files
}
