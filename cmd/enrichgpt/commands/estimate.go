package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/enrichgpt/internal/output"
	"github.com/jmylchreest/enrichgpt/pkg/estimate"
	"github.com/jmylchreest/enrichgpt/pkg/llm"
	"github.com/jmylchreest/enrichgpt/pkg/rowstore"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate prompt tokens for a template",
	Long: `Count the tokens of the prompt template, system prompt and filter
as the model's tokenizer sees them. With --db and --table the per-row
figure is multiplied by the number of rows the filter selects.

The template is counted as written; placeholders are not expanded.`,
	RunE: runEstimate,
}

// newCounter builds the tokenizer used by estimate.
var newCounter = func() estimate.Counter { return estimate.NewTiktokenCounter() }

func init() {
	rootCmd.AddCommand(estimateCmd)

	flags := estimateCmd.Flags()
	flags.StringP("prompt", "p", "", "prompt template (required)")
	flags.String("system-prompt", "", "system prompt")
	flags.String("filter", "", "filter query string, counted as part of the prompt")
	flags.StringP("model", "m", llm.DefaultModel, "model identifier")
	flags.String("db", "", "SQLite database, to multiply by the row count")
	flags.StringP("table", "t", "", "table to count rows of")
	flags.String("where", "", "SQL filter for the row count")

	_ = estimateCmd.MarkFlagRequired("prompt")
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	setupLogging()

	format, err := outputFormat()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	prompt, _ := flags.GetString("prompt")
	system, _ := flags.GetString("system-prompt")
	filter, _ := flags.GetString("filter")
	model, _ := flags.GetString("model")

	n, err := estimate.Estimate(newCounter(), prompt, system, filter, model)
	if err != nil {
		return err
	}
	result := output.TokenEstimate{Model: model, EstimatedTokens: n}

	dbPath, _ := flags.GetString("db")
	table, _ := flags.GetString("table")
	if dbPath != "" && table != "" {
		store, err := rowstore.Open(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		where, _ := flags.GetString("where")
		result.Rows, err = store.CountRows(cmd.Context(), rowstore.Query{Table: table, Where: where})
		if err != nil {
			return err
		}
	}

	return output.Print(cmd.OutOrStdout(), format, result)
}
