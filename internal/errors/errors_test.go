package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := NewNetworkError(ErrCodeHTTPStatus, "https://example.com/x", 503, nil)
	msg := err.Error()

	assert.Contains(t, msg, "[ERR_HTTP_STATUS]")
	assert.Contains(t, msg, "https://example.com/x")
	assert.Contains(t, msg, "HTTP 503")

	cause := errors.New("connection reset")
	err = NewNetworkError(ErrCodeTransport, "https://example.com/y", 0, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NotContains(t, err.Error(), "HTTP")
}

func TestClassification(t *testing.T) {
	network := NewNetworkError(ErrCodeTransport, "u", 0, errors.New("boom"))
	parse := NewParseError(ErrCodeMalformedHTML, "u", "no listing", nil)
	exhausted := NewExhaustionError(7, 5)

	tests := []struct {
		name        string
		err         error
		network     bool
		parse       bool
		exhausted   bool
		recoverable bool
	}{
		{"network", network, true, false, false, true},
		{"parse", parse, false, true, false, true},
		{"exhausted", exhausted, false, false, true, false},
		{"wrapped network", fmt.Errorf("fetch tree: %w", network), true, false, false, true},
		{"plain", errors.New("plain"), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.network, IsNetwork(tt.err))
			assert.Equal(t, tt.parse, IsParse(tt.err))
			assert.Equal(t, tt.exhausted, IsExhausted(tt.err))
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
		})
	}
}

func TestExhaustionErrorContext(t *testing.T) {
	err := NewExhaustionError(12, 3)

	assert.Equal(t, 12, err.Context["last_page"])
	assert.Equal(t, 3, err.Context["empty_pages"])
	assert.Contains(t, err.Error(), "3 consecutive empty pages")
}

func TestIsComparesTypeAndCode(t *testing.T) {
	a := NewNetworkError(ErrCodeHTTPStatus, "a", 500, nil)
	b := NewNetworkError(ErrCodeHTTPStatus, "b", 404, nil)
	c := NewNetworkError(ErrCodeTransport, "a", 0, nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestStatusCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewNetworkError(ErrCodeHTTPStatus, "u", 429, nil))
	assert.Equal(t, 429, StatusCode(err))
	assert.Equal(t, 0, StatusCode(errors.New("x")))
}

func TestWrapPreservesLocation(t *testing.T) {
	inner := NewNetworkError(ErrCodeHTTPStatus, "https://h/x", 502, nil)
	wrapped := Wrap(inner, ErrorTypeInternal, ErrCodeInternalError, "resolve failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, "https://h/x", wrapped.URL)
	assert.Equal(t, 502, wrapped.StatusCode)
	assert.True(t, HasErrorCode(wrapped, ErrCodeHTTPStatus))
	assert.True(t, HasErrorType(wrapped, ErrorTypeNetwork))
	assert.Same(t, inner, GetRootCause(wrapped))

	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "", ""))
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.NoError(t, vec.ErrorOrNil())
	assert.Equal(t, "no validation errors", vec.Error())

	vec.AddField("filter.min_length", -1, "must be positive", "use 10")
	require.Error(t, vec.ErrorOrNil())
	assert.Contains(t, vec.Error(), "filter.min_length")

	vec.AddField("crawl.buffer_size", 0, "must be at least 1")
	assert.Contains(t, vec.Error(), "validation failed with 2 errors")
	assert.Equal(t, []string{"use 10"}, vec.Errors[0].Suggestions())
}

type recordingLogger struct {
	warns  []string
	errors []string
	fields [][]interface{}
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.warns = append(r.warns, msg)
	r.fields = append(r.fields, fields)
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.errors = append(r.errors, msg)
	r.fields = append(r.fields, fields)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, NewNetworkError(ErrCodeHTTPStatus, "u", 500, nil), "origin", "serde")
	h.Handle(ctx, NewParseError(ErrCodeMalformedHTML, "u", "bad", nil))
	h.Handle(ctx, errors.New("mystery"))

	assert.Len(t, logger.warns, 2)
	assert.Len(t, logger.errors, 1)
	assert.Contains(t, logger.fields[0], "serde")
	assert.Contains(t, logger.fields[0], 500)
}
