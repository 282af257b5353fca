package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/typster/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration",
	Long: `Print the effective configuration after defaults, the configuration file
and TYPSTER_* environment overrides have been applied.

With --init, write a configuration file holding every default instead.

Examples:
  typster config                     # Print the effective configuration
  typster config -o json             # Print it as JSON
  typster config --init              # Write .typster.yml
  typster config --init --force      # Replace an existing .typster.yml`,
	RunE: runConfig,
}

var (
	configInit   bool
	configForce  bool
	configOutput *OutputFlags
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().BoolVar(&configInit, "init", false, "Write a configuration file with every default")
	configCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file with --init")
	configOutput = AddOutputFlags(configCmd, FormatYAML, FormatJSON)
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configInit {
		target := cfgFile
		if target == "" {
			target = ".typster.yml"
		}
		return initConfigFile(cmd.OutOrStdout(), target, configForce)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return printConfig(cmd.OutOrStdout(), cfg, configOutput.Format)
}

// initConfigFile writes the default configuration to target.
func initConfigFile(out io.Writer, target string, force bool) error {
	cfg, err := config.LoadFrom(viper.New())
	if err != nil {
		return err
	}
	if err := cfg.WriteFile(target, force); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Wrote %s\n", target)
	return err
}

func printConfig(out io.Writer, cfg *config.Config, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
}
