package websocket

import (
	"fmt"
	"net/url"
)

// OriginValidator decides whether a browser origin may open a feed.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowList accepts the server's own address, its loopback aliases and any
// explicitly configured origin. Requests without an Origin header come from
// non-browser clients and are accepted.
type AllowList struct {
	hosts   map[string]bool
	origins map[string]bool
}

// NewAllowList creates an AllowList for a server bound to host:port.
func NewAllowList(host string, port int, allowed []string) *AllowList {
	a := &AllowList{
		hosts: map[string]bool{
			fmt.Sprintf("%s:%d", host, port):   true,
			fmt.Sprintf("localhost:%d", port): true,
			fmt.Sprintf("127.0.0.1:%d", port): true,
		},
		origins: make(map[string]bool, len(allowed)),
	}
	for _, o := range allowed {
		a.origins[o] = true
	}
	return a
}

// IsAllowedOrigin implements OriginValidator.
func (a *AllowList) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	if a.origins[origin] {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return a.hosts[u.Host]
}
