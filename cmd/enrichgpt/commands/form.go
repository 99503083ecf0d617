package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/enrichgpt/internal/output"
	"github.com/jmylchreest/enrichgpt/pkg/enrichment"
	"github.com/jmylchreest/enrichgpt/pkg/rowstore"
)

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Print the configuration form for a table",
	Long: `Print the configuration fields, with defaults derived from the
table's columns. Use the defaults as a starting point for a --job-file.`,
	RunE: runForm,
}

func init() {
	rootCmd.AddCommand(formCmd)

	flags := formCmd.Flags()
	flags.String("db", "", "path to the SQLite database (required)")
	flags.StringP("table", "t", "", "table (required)")
	flags.Bool("defaults", false, "print only the default job configuration")

	_ = formCmd.MarkFlagRequired("db")
	_ = formCmd.MarkFlagRequired("table")
}

func runForm(cmd *cobra.Command, _ []string) error {
	setupLogging()

	format, err := outputFormat()
	if err != nil {
		return err
	}
	// Forms have no terminal rendering.
	if format == output.FormatText {
		format = output.FormatYAML
	}

	flags := cmd.Flags()
	dbPath, _ := flags.GetString("db")
	table, _ := flags.GetString("table")

	store, err := rowstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	columns, err := store.TableColumns(cmd.Context(), table)
	if err != nil {
		return err
	}

	form := enrichment.ConfigForm(columns, staticKey() != "")
	if onlyDefaults, _ := flags.GetBool("defaults"); onlyDefaults {
		return output.Print(cmd.OutOrStdout(), format, form.Defaults())
	}
	return output.Print(cmd.OutOrStdout(), format, form)
}
