package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/typster/internal/version"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, git commit, build time, Go version and platform.

Examples:
  typster version              # Show version details
  typster version --short      # Show the version number only
  typster version -o json      # Output as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), versionOutput.Format, versionShort)
	},
}

var versionOutput *OutputFlags

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionOutput = AddOutputFlags(versionCmd, FormatText, FormatJSON, FormatYAML)
}

func printVersion(out io.Writer, format string, short bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(version.GetBuildInfo())
	case FormatYAML:
		return yaml.NewEncoder(out).Encode(version.GetBuildInfo())
	default:
		if short {
			_, err := fmt.Fprintln(out, version.GetVersion())
			return err
		}
		_, err := fmt.Fprintln(out, version.GetDetailedVersion())
		return err
	}
}
