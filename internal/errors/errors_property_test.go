//go:build property

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// wrapN wraps err depth times, alternating fmt wrapping and Wrap.
func wrapN(err error, depth int) error {
	for i := 0; i < depth; i++ {
		if i%2 == 0 {
			err = fmt.Errorf("layer %d: %w", i, err)
		} else {
			err = Wrap(err, ErrorTypeInternal, "ERR_LAYER", fmt.Sprintf("layer %d", i))
		}
	}
	return err
}

func TestErrorChainProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("classification survives wrapping", prop.ForAll(
		func(depth int, status int) bool {
			network := wrapN(NewNetworkError(ErrCodeHTTPStatus, "https://example.com", status, nil), depth)
			exhausted := wrapN(NewExhaustionError(depth, 5), depth)

			return IsNetwork(network) && !IsExhausted(network) &&
				IsExhausted(exhausted) && !IsNetwork(exhausted) &&
				StatusCode(network) == status
		},
		gen.IntRange(0, 8),
		gen.IntRange(400, 599),
	))

	properties.Property("root cause is the innermost error", prop.ForAll(
		func(depth int, msg string) bool {
			root := errors.New(msg)
			wrapped := wrapN(root, depth)

			return GetRootCause(wrapped) == root && errors.Is(wrapped, root)
		},
		gen.IntRange(0, 8),
		gen.AlphaString(),
	))

	properties.Property("codes stay reachable through the chain", prop.ForAll(
		func(depth int) bool {
			err := wrapN(NewParseError(ErrCodeMalformedHTML, "u", "no listing", nil), depth)
			return HasErrorCode(err, ErrCodeMalformedHTML) && IsParse(err)
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
