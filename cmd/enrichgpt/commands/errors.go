package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/enrichgpt/internal/output"
	"github.com/jmylchreest/enrichgpt/pkg/rowstore"
)

var errorsCmd = &cobra.Command{
	Use:   "errors JOB_ID",
	Short: "Show rows that failed in a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runErrors,
}

func init() {
	rootCmd.AddCommand(errorsCmd)

	errorsCmd.Flags().String("db", "", "path to the SQLite database (required)")
	_ = errorsCmd.MarkFlagRequired("db")
}

func runErrors(cmd *cobra.Command, args []string) error {
	setupLogging()

	format, err := outputFormat()
	if err != nil {
		return err
	}

	dbPath, _ := cmd.Flags().GetString("db")
	store, err := rowstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.EnsureErrorsTable(cmd.Context()); err != nil {
		return err
	}
	entries, err := store.Errors(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		logInfo("No errors recorded for job %s", args[0])
		return nil
	}

	rows := make([]any, len(entries))
	for i, e := range entries {
		rows[i] = output.LedgerRow{LedgerEntry: e}
	}
	return output.Print(cmd.OutOrStdout(), format, rows...)
}
