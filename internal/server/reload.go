package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/watcher"
)

// WatchConfig re-reads the configuration file behind v whenever it changes
// and passes every configuration that validates to apply. Invalid edits are
// logged and ignored. The returned function stops watching.
func WatchConfig(ctx context.Context, v *viper.Viper, logger logging.Logger, apply func(*config.Config)) (func() error, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	path := v.ConfigFileUsed()
	if path == "" {
		return nil, fmt.Errorf("no configuration file to watch")
	}

	fw, err := watcher.NewFileWatcher(watcher.DefaultDebounce, logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(watcher.SameFile(path))
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("re-reading %s: %w", path, err)
		}
		cfg, err := config.LoadFrom(v)
		if err != nil {
			return err
		}

		logger.Info(ctx, "Configuration reloaded", "file", path)
		apply(cfg)
		return nil
	})

	if err := fw.AddPath(filepath.Dir(path)); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	return fw.Stop, nil
}
