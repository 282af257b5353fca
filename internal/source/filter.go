package source

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/conneroisu/typster/internal/config"
)

// Filter decides which lines of a source file are worth typing.
//
// A kept line is trimmed, holds between MinLength and MaxLength runes
// inclusive, and does not start with CommentPrefix.
type Filter struct {
	MinLength     int
	MaxLength     int
	CommentPrefix string
}

// DefaultFilter keeps lines of 10 to 80 runes that are not // comments.
func DefaultFilter() Filter {
	return Filter{
		MinLength:     config.DefaultMinLength,
		MaxLength:     config.DefaultMaxLength,
		CommentPrefix: config.DefaultCommentPrefix,
	}
}

// NewFilter builds a Filter from the filter section of the configuration.
func NewFilter(cfg config.FilterConfig) Filter {
	return Filter{
		MinLength:     cfg.MinLength,
		MaxLength:     cfg.MaxLength,
		CommentPrefix: cfg.CommentPrefix,
	}
}

// Keep reports whether an already trimmed line passes the filter.
func (f Filter) Keep(line string) bool {
	// runes, not bytes: "é" is one character of the 10 to 80
	n := utf8.RuneCountInString(line)
	if n < f.MinLength || n > f.MaxLength {
		return false
	}
	return f.CommentPrefix == "" || !strings.HasPrefix(line, f.CommentPrefix)
}

// Lines splits content into trimmed lines and returns those that pass the
// filter, in file order. A leading byte-order mark is discarded.
func (f Filter) Lines(content []byte) []string {
	content = stripBOM(content)

	var kept []string
	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if f.Keep(line) {
			kept = append(kept, line)
		}
	}
	return kept
}

func stripBOM(content []byte) []byte {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), content)
	if err != nil {
		return content
	}
	return decoded
}
