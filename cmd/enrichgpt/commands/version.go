package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/enrichgpt/internal/output"
	"github.com/jmylchreest/enrichgpt/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		return output.Print(cmd.OutOrStdout(), format, version.Get())
	},
}

func init() {
	rootCmd.Version = version.String()
	rootCmd.AddCommand(versionCmd)
}
