package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/conneroisu/typster/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DefaultRegistryURL, cfg.Registry.URL)
	assert.Equal(t, "recent-downloads", cfg.Registry.Sort)
	assert.Equal(t, "github.com", cfg.Registry.Host)
	assert.Equal(t, 1, cfg.Registry.StartPage)
	assert.Equal(t, 5, cfg.Registry.MaxEmptyPages)
	assert.Equal(t, ".rs", cfg.Crawl.Extension)
	assert.Equal(t, 10, cfg.Crawl.BufferSize)
	assert.Equal(t, 10, cfg.Filter.MinLength)
	assert.Equal(t, 80, cfg.Filter.MaxLength)
	assert.Equal(t, "//", cfg.Filter.CommentPrefix)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.HTTP.RequestInterval)
	assert.Empty(t, cfg.Cache.RedisURL)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides",
			setup: func(v *viper.Viper) {
				v.Set("crawl.extension", ".go")
				v.Set("crawl.buffer_size", 32)
				v.Set("http.timeout", "3s")
				v.Set("crawl.host_url", "https://example.test/")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ".go", cfg.Crawl.Extension)
				assert.Equal(t, 32, cfg.Crawl.BufferSize)
				assert.Equal(t, 3*time.Second, cfg.HTTP.Timeout)
				assert.Equal(t, "https://example.test", cfg.Crawl.HostURL)
			},
		},
		{
			name: "uncapped paginator rejected",
			setup: func(v *viper.Viper) {
				v.Set("registry.max_empty_pages", 0)
			},
			expectError: true,
		},
		{
			name: "inverted filter bounds",
			setup: func(v *viper.Viper) {
				v.Set("filter.min_length", 50)
				v.Set("filter.max_length", 20)
			},
			expectError: true,
		},
		{
			name: "relative registry url",
			setup: func(v *viper.Viper) {
				v.Set("registry.url", "/api/v1/crates")
			},
			expectError: true,
		},
		{
			name: "extension without dot",
			setup: func(v *viper.Viper) {
				v.Set("crawl.extension", "rs")
			},
			expectError: true,
		},
		{
			name: "undecodable value",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "not-a-port")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				require.Error(t, err)
				var te *terrors.Error
				require.ErrorAs(t, err, &te)
				assert.Equal(t, terrors.ErrorTypeConfig, te.Type)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidationReportsEveryField(t *testing.T) {
	v := viper.New()
	v.Set("crawl.buffer_size", 0)
	v.Set("log.format", "xml")

	_, err := LoadFrom(v)
	require.Error(t, err)

	var vec *terrors.ValidationErrorCollection
	require.ErrorAs(t, err, &vec)
	fields := make([]string, 0, len(vec.Errors))
	for _, e := range vec.Errors {
		fields = append(fields, e.Field())
	}
	assert.ElementsMatch(t, []string{"crawl.buffer_size", "log.format"}, fields)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".typster.yml")
	content := `
registry:
  max_empty_pages: 3
filter:
  min_length: 12
cache:
  redis_url: redis://localhost:6379/0
  ttl: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Registry.MaxEmptyPages)
	assert.Equal(t, 12, cfg.Filter.MinLength)
	assert.Equal(t, 80, cfg.Filter.MaxLength)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}

func TestWriteFileRoundTrip(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Crawl.Extension = ".go"
	cfg.Registry.MaxEmptyPages = 2

	path := filepath.Join(t.TempDir(), ".typster.yml")
	require.NoError(t, cfg.WriteFile(path, false))
	assert.Error(t, cfg.WriteFile(path, false), "existing file must not be replaced")
	require.NoError(t, cfg.WriteFile(path, true))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	loaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, ".go", loaded.Crawl.Extension)
	assert.Equal(t, 2, loaded.Registry.MaxEmptyPages)
	assert.Equal(t, cfg.HTTP.Timeout, loaded.HTTP.Timeout)
}
