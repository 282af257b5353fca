package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const fileHeader = "# typster configuration file\n# Every key can be overridden with TYPSTER_<SECTION>_<KEY>.\n\n"

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return data, nil
}

// WriteFile writes the configuration to filename. An existing file is only
// replaced when overwrite is set.
func (c *Config) WriteFile(filename string, overwrite bool) error {
	if _, err := os.Stat(filename); err == nil && !overwrite {
		return fmt.Errorf("configuration file %s already exists", filename)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	content := append([]byte(fileHeader), data...)
	if err := os.WriteFile(filename, content, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}
