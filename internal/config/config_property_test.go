//go:build property
// +build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

func validBase(t *testing.T) *Config {
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	return cfg
}

// TestFilterBoundsProperties checks that validation accepts exactly the
// ordered, positive length windows.
func TestFilterBoundsProperties(t *testing.T) {
	base := validBase(t)
	properties := gopter.NewProperties(nil)

	properties.Property("filter window validity", prop.ForAll(
		func(minLen, maxLen int) bool {
			cfg := *base
			cfg.Filter.MinLength = minLen
			cfg.Filter.MaxLength = maxLen

			err := validateConfig(&cfg)
			wantValid := minLen >= 1 && maxLen >= minLen
			return (err == nil) == wantValid
		},
		gen.IntRange(-5, 200),
		gen.IntRange(-5, 200),
	))

	properties.Property("buffer size validity", prop.ForAll(
		func(size int) bool {
			cfg := *base
			cfg.Crawl.BufferSize = size
			return (validateConfig(&cfg) == nil) == (size >= 1)
		},
		gen.IntRange(-100, 100),
	))

	properties.Property("port range", prop.ForAll(
		func(port int) bool {
			cfg := *base
			cfg.Server.Port = port
			return (validateConfig(&cfg) == nil) == (port >= 0 && port <= 65535)
		},
		gen.IntRange(-1000, 70000),
	))

	properties.TestingRun(t)
}
