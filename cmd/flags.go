package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/typster/internal/logging"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// OutputFlags is the shared --output flag.
type OutputFlags struct {
	Format  string
	allowed []string
}

// AddOutputFlags registers --output/-o on cmd, restricted to formats. The
// first format is the default.
func AddOutputFlags(cmd *cobra.Command, formats ...string) *OutputFlags {
	flags := &OutputFlags{allowed: formats}
	cmd.Flags().StringVarP(&flags.Format, "output", "o", formats[0],
		fmt.Sprintf("Output format (%s)", strings.Join(formats, "|")))
	AddFlagValidation(cmd.Flags(), "output", flags.validate)
	return flags
}

func (f *OutputFlags) validate(value string) error {
	for _, format := range f.allowed {
		if value == format {
			return nil
		}
	}

	msg := fmt.Sprintf("invalid output format %q, must be one of: %s", value, strings.Join(f.allowed, ", "))
	if guess := closest(value, f.allowed); guess != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", guess)
	}
	return errors.New(msg)
}

// AddFlagValidation runs validator before a flag value is accepted.
func AddFlagValidation(flags *pflag.FlagSet, name string, validator func(string) error) {
	flag := flags.Lookup(name)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// ValidateLogLevel accepts the levels the logger understands.
func ValidateLogLevel(value string) error {
	_, err := logging.ParseLevel(value)
	return err
}

// ValidatePort accepts 0 (pick any free port) through 65535.
func ValidatePort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", value)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateCount accepts non-negative line counts.
func ValidateCount(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("count must be a non-negative integer, got %s", value)
	}
	return nil
}

// closest returns the candidate sharing the longest prefix with value, or
// "" when none shares its first letter.
func closest(value string, candidates []string) string {
	best, bestLen := "", 0
	lower := strings.ToLower(value)
	for _, c := range candidates {
		n := 0
		for n < len(lower) && n < len(c) && lower[n] == c[n] {
			n++
		}
		if n > bestLen {
			best, bestLen = c, n
		}
	}
	return best
}
