package testutils

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Crate is one entry of a fake registry page.
type Crate struct {
	ID         string  `json:"id"`
	Repository *string `json:"repository"`
}

// FileSpec is a file hosted by the fake site. Path is relative to the
// repository root, e.g. "src/lib.rs".
type FileSpec struct {
	Path    string
	Content string
	// NoRawLink omits the raw-url link from the viewer page.
	NoRawLink bool
}

type failure struct {
	status    int
	remaining int
}

// FakeSite is an httptest server posing as both the package registry and the
// code hosting site. Repositories live at /<owner>/<name>, directory listings
// at /<owner>/<name>/tree/main/<dir>, viewer pages at .../blob/main/<file>
// and raw content at .../raw/main/<file>.
type FakeSite struct {
	server *httptest.Server

	mu       sync.Mutex
	pages    [][]Crate
	repos    map[string][]FileSpec
	hits     map[string]int
	total    int
	failures map[string]*failure
}

// NewFakeSite starts a fake site that is closed when the test ends.
func NewFakeSite(t *testing.T) *FakeSite {
	t.Helper()

	s := &FakeSite{
		repos:    make(map[string][]FileSpec),
		hits:     make(map[string]int),
		failures: make(map[string]*failure),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)

	return s
}

// URL is the site root without a trailing slash.
func (s *FakeSite) URL() string {
	return s.server.URL
}

// Host is the host:port of the site, used as the registry host filter.
func (s *FakeSite) Host() string {
	u, _ := url.Parse(s.server.URL)
	return u.Host
}

// RegistryURL is the paged metadata endpoint.
func (s *FakeSite) RegistryURL() string {
	return s.server.URL + "/api/v1/crates"
}

// RepoURL is the tree root of the named repository ("owner/name").
func (s *FakeSite) RepoURL(name string) string {
	return s.server.URL + "/" + name
}

// BlobURL is the viewer page of a file.
func (s *FakeSite) BlobURL(repo, file string) string {
	return s.server.URL + "/" + repo + "/blob/main/" + file
}

// AddRepo hosts a repository with the given files.
func (s *FakeSite) AddRepo(name string, files ...FileSpec) *FakeSite {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[name] = append(s.repos[name], files...)
	return s
}

// AddPage appends a registry page.
func (s *FakeSite) AddPage(crates ...Crate) *FakeSite {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, crates)
	return s
}

// HostedCrate is a registry entry whose repository is hosted by s.
func (s *FakeSite) HostedCrate(id, repo string) Crate {
	u := s.RepoURL(repo)
	return Crate{ID: id, Repository: &u}
}

// ExternalCrate is a registry entry pointing somewhere else.
func ExternalCrate(id, repository string) Crate {
	return Crate{ID: id, Repository: &repository}
}

// Fail answers the next times requests for urlPath with status. A negative
// times fails forever.
func (s *FakeSite) Fail(urlPath string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[urlPath] = &failure{status: status, remaining: times}
}

// Hits returns how many requests urlPath received.
func (s *FakeSite) Hits(urlPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[urlPath]
}

// TotalHits returns the number of requests served.
func (s *FakeSite) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *FakeSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.total++
	if f, ok := s.failures[r.URL.Path]; ok && f.remaining != 0 {
		f.remaining--
		s.mu.Unlock()
		w.WriteHeader(f.status)
		return
	}
	s.mu.Unlock()

	if r.URL.Path == "/api/v1/crates" {
		s.serveRegistry(w, r)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}

	repo := parts[0] + "/" + parts[1]
	s.mu.Lock()
	files, ok := s.repos[repo]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	rest := parts[2:]
	switch {
	case len(rest) == 0:
		s.serveListing(w, r, repo, files, "")
	case len(rest) >= 2 && rest[0] == "tree":
		s.serveListing(w, r, repo, files, strings.Join(rest[2:], "/"))
	case len(rest) >= 3 && rest[0] == "blob":
		s.serveViewer(w, r, repo, files, strings.Join(rest[2:], "/"))
	case len(rest) >= 3 && rest[0] == "raw":
		s.serveRaw(w, r, files, strings.Join(rest[2:], "/"))
	default:
		http.NotFound(w, r)
	}
}

func (s *FakeSite) serveRegistry(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, "bad page", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	crates := []Crate{}
	if page <= len(s.pages) {
		crates = s.pages[page-1]
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"crates": crates})
}

// serveListing renders the immediate children of dir, folders first as the
// hosting site does, with a parent link that must be ignored.
func (s *FakeSite) serveListing(w http.ResponseWriter, r *http.Request, repo string, files []FileSpec, dir string) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	var folders, blobs []string
	seen := make(map[string]bool)
	for _, f := range files {
		if !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Path, prefix)
		if i := strings.Index(rel, "/"); i >= 0 {
			sub := prefix + rel[:i]
			if !seen[sub] {
				seen[sub] = true
				folders = append(folders, sub)
			}
			continue
		}
		blobs = append(blobs, f.Path)
	}
	if dir != "" && len(folders) == 0 && len(blobs) == 0 {
		http.NotFound(w, r)
		return
	}
	sort.Strings(folders)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><body><div role=\"grid\">\n")
	if dir != "" {
		parent := path.Dir(dir)
		href := "/" + repo
		if parent != "." {
			href += "/tree/main/" + parent
		}
		fmt.Fprintf(&b, "<div role=\"row\"><div role=\"rowheader\"><a rel=\"nofollow\" href=\"%s\">..</a></div></div>\n", href)
	}
	for _, f := range folders {
		fmt.Fprintf(&b, "<div role=\"row\"><div role=\"rowheader\"><span><a href=\"/%s/tree/main/%s\">%s</a></span></div></div>\n",
			repo, f, html.EscapeString(path.Base(f)))
	}
	for _, f := range blobs {
		fmt.Fprintf(&b, "<div role=\"row\"><div role=\"rowheader\"><span><a href=\"/%s/blob/main/%s\">%s</a></span></div></div>\n",
			repo, f, html.EscapeString(path.Base(f)))
	}
	b.WriteString("</div></body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *FakeSite) serveViewer(w http.ResponseWriter, r *http.Request, repo string, files []FileSpec, file string) {
	spec, ok := findFile(files, file)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if spec.NoRawLink {
		_, _ = fmt.Fprintf(w, "<html><body><p>%s is too large to display</p></body></html>", html.EscapeString(file))
		return
	}
	_, _ = fmt.Fprintf(w, "<html><body><div class=\"file-actions\"><a id=\"raw-url\" href=\"/%s/raw/main/%s\">Raw</a></div></body></html>",
		repo, file)
}

func (s *FakeSite) serveRaw(w http.ResponseWriter, r *http.Request, files []FileSpec, file string) {
	spec, ok := findFile(files, file)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(spec.Content))
}

func findFile(files []FileSpec, file string) (FileSpec, bool) {
	for _, f := range files {
		if f.Path == file {
			return f, true
		}
	}
	return FileSpec{}, false
}

// NumberedLines returns n filterable lines tagged with label, e.g.
// "let alpha_0 = 0;".
func NumberedLines(label string, n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("let %s_%d = %d;", label, i, i)
	}
	return lines
}

// Source joins lines into file content.
func Source(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
