package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/enrichgpt/internal/output"
	"github.com/jmylchreest/enrichgpt/pkg/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported models",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		models := llm.Models()
		rows := make([]any, len(models))
		for i, m := range models {
			rows[i] = output.NewModelRow(m)
		}
		return output.Print(cmd.OutOrStdout(), format, rows...)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
