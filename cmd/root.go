// Package cmd provides the typster command-line interface.
//
// Configuration is read from, in order of precedence:
//  1. command-line flags (--log-level, --port, ...)
//  2. TYPSTER_<SECTION>_<KEY> environment variables
//  3. the file named by --config or TYPSTER_CONFIG_FILE
//  4. .typster.yml in the working directory
//  5. built-in defaults
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "typster",
	Short: "Stream real source lines for typing practice",
	Long: `typster crawls the crates.io registry, walks each crate's GitHub repository
and streams the Rust source lines it finds, one line at a time.

Quick Start:
  typster dump -n 20          Print twenty lines
  typster serve               Serve lines over a WebSocket feed
  typster config --init       Write a configuration file with every default`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .typster.yml, can also use TYPSTER_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)
}

// initConfig points viper at the configuration file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TYPSTER_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".typster")
	}

	viper.SetEnvPrefix("TYPSTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// a missing file is fine; defaults apply
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the effective configuration, attaching recovery hints to
// any failure.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewEnhancedError(
			"Failed to load configuration",
			err,
			errors.ConfigurationSuggestions(err, viper.ConfigFileUsed()),
		)
	}
	return cfg, nil
}

// newLogger builds the process logger. When log.dir is set, output goes to a
// dated file so it never mixes with command output.
func newLogger(cfg *config.Config, stderr io.Writer) (*logging.StructuredLogger, func() error, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	loggerConfig := &logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: stderr,
	}

	if cfg.Log.Dir != "" {
		fileLogger, err := logging.NewFileLogger(loggerConfig, cfg.Log.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fileLogger.StructuredLogger, fileLogger.Close, nil
	}

	return logging.NewLogger(loggerConfig), func() error { return nil }, nil
}
