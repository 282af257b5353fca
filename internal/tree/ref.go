package tree

import "context"

// Ref is a lazily resolved reference. It starts as a URL and is resolved at
// most once; the value is cached in place. Failed attempts are counted so the
// walker can give up on a reference that keeps failing.
type Ref[T any] struct {
	URL string

	value    T
	resolved bool
	attempts int
}

// NewRef creates an unresolved reference to url.
func NewRef[T any](url string) *Ref[T] {
	return &Ref[T]{URL: url}
}

// Get returns the cached value, calling resolve on first use. A failed call
// leaves the reference unresolved.
func (r *Ref[T]) Get(ctx context.Context, resolve func(context.Context, string) (T, error)) (T, error) {
	if r.resolved {
		return r.value, nil
	}

	r.attempts++
	value, err := resolve(ctx, r.URL)
	if err != nil {
		var zero T
		return zero, err
	}

	r.value = value
	r.resolved = true
	return value, nil
}

// Resolved reports whether the value is cached.
func (r *Ref[T]) Resolved() bool {
	return r.resolved
}

// Attempts returns how many times resolution was tried.
func (r *Ref[T]) Attempts() int {
	return r.attempts
}
