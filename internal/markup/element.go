// Package markup wraps golang.org/x/net/html with the handful of queries the
// crawler runs against listing and viewer pages.
package markup

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
)

// Element is an element node of a parsed page.
type Element struct {
	Node *html.Node
}

// Matcher selects elements.
type Matcher func(*Element) bool

// Parse parses an HTML document and returns its root.
func Parse(data []byte) (*Element, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Element{Node: doc}, nil
}

// TagName returns the lower-case tag name.
func (e *Element) TagName() string {
	return e.Node.Data
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, attr := range e.Node.Attr {
		if attr.Key == name {
			return attr.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present, whatever its value.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// FindAll returns the element descendants of e that satisfy match, in
// document order. e itself is never included.
func (e *Element) FindAll(match Matcher) []*Element {
	var found []*Element

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if el := (&Element{Node: c}); match(el) {
					found = append(found, el)
				}
			}
			traverse(c)
		}
	}

	traverse(e.Node)
	return found
}

// Find returns the first descendant that satisfies match, or nil.
func (e *Element) Find(match Matcher) *Element {
	var found *Element

	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if el := (&Element{Node: c}); match(el) {
					found = el
					return true
				}
			}
			if traverse(c) {
				return true
			}
		}
		return false
	}

	traverse(e.Node)
	return found
}

// Tag matches elements by tag name.
func Tag(name string) Matcher {
	return func(e *Element) bool {
		return e.TagName() == name
	}
}

// AttrEquals matches elements whose attribute key has exactly value.
func AttrEquals(key, value string) Matcher {
	return func(e *Element) bool {
		v, ok := e.Attr(key)
		return ok && v == value
	}
}

// All matches elements satisfying every matcher.
func All(matchers ...Matcher) Matcher {
	return func(e *Element) bool {
		for _, m := range matchers {
			if !m(e) {
				return false
			}
		}
		return true
	}
}
