package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/enrichgpt/internal/logger"
	"github.com/jmylchreest/enrichgpt/internal/output"
	"github.com/jmylchreest/enrichgpt/internal/runner"
	"github.com/jmylchreest/enrichgpt/pkg/credential"
	"github.com/jmylchreest/enrichgpt/pkg/enrichment"
	"github.com/jmylchreest/enrichgpt/pkg/llm"
	"github.com/jmylchreest/enrichgpt/pkg/rowstore"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich the rows of a table",
	Long: `Run an enrichment over a SQLite table.

The job is read from --job-file (YAML) when given; individual flags
override its fields. Each row's prompt is rendered from the template,
sent to the model, and the answer written to the output column, which
is created if missing. Failed rows are recorded in _enrichment_errors.

Examples:
  enrichgpt run --db museums.db --table museums \
      --prompt "Write a haiku about {{ name }}" --output-column haiku

  enrichgpt run --db museums.db --table museums --job-file haiku.yaml \
      --where "city = 'Los Angeles'" --pending-only -c 4`,
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()

	flags.String("db", "", "path to the SQLite database (required)")
	flags.StringP("table", "t", "", "table to enrich (required)")
	flags.String("job-file", "", "YAML file with the enrichment configuration")

	flags.StringP("model", "m", llm.DefaultModel, "model identifier (see `enrichgpt models`)")
	flags.StringP("prompt", "p", "", "prompt template, e.g. \"{{ name }}\"")
	flags.String("system-prompt", "", "system prompt (sent verbatim)")
	flags.String("image-url", "", "image URL template for vision models")
	flags.Bool("json", false, "request a JSON object response")
	flags.String("output-column", enrichment.DefaultOutputColumn, "column the answer is written to")

	flags.StringP("api-key", "k", "", "OpenAI API key for this job (ignored when OPENAI_API_KEY is set)")
	flags.String("secret", "", "name of a stored secret holding the API key")
	flags.String("base-url", "", "override the OpenAI-compatible API base URL")

	flags.String("where", "", "SQL filter selecting the rows to enrich")
	flags.Bool("pending-only", false, "skip rows whose output column is already set")
	flags.Int("limit", 0, "max rows to enrich (0=all)")
	flags.IntP("concurrency", "c", 1, "rows processed in parallel")
	flags.Bool("fail-fast", false, "stop at the first failed row")

	_ = runCmd.MarkFlagRequired("db")
	_ = runCmd.MarkFlagRequired("table")

	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
}

// jobConfig assembles the enrichment config from --job-file and flags.
func jobConfig(cmd *cobra.Command) (enrichment.Config, error) {
	flags := cmd.Flags()

	cfg := enrichment.Config{
		Model:        llm.DefaultModel,
		OutputColumn: enrichment.DefaultOutputColumn,
	}
	if path, _ := flags.GetString("job-file"); path != "" {
		loaded, err := enrichment.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("model", &cfg.Model)
	override("prompt", &cfg.Prompt)
	override("system-prompt", &cfg.SystemPrompt)
	override("image-url", &cfg.ImageURL)
	override("output-column", &cfg.OutputColumn)
	override("api-key", &cfg.APIKey)
	override("secret", &cfg.Secret)
	if flags.Changed("json") {
		cfg.JSONFormat, _ = flags.GetBool("json")
	}
	return cfg, nil
}

// newEnrichment wires the credential resolver and completion client.
func newEnrichment(static string, stash credential.Stash) *enrichment.Enrichment {
	resolver := credential.NewResolver(
		credential.WithStaticKey(static),
		credential.WithStash(stash),
		credential.WithSecretStore(secretStore()),
	)
	client := llm.NewClient(
		llm.WithProviderConfig("openai", llm.ProviderConfig{BaseURL: viper.GetString("base_url")}),
		llm.WithObserver(llm.LoggingObserver{}),
	)
	return enrichment.New(resolver, client)
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	setupLogging()

	format, err := outputFormat()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := jobConfig(cmd)
	if err != nil {
		return err
	}

	static := staticKey()
	stash := credential.NewMemoryStash()
	cfg, err = enrichment.Prepare(cfg, enrichment.PrepareOptions{
		StaticKey: static != "",
		Stash:     stash,
	})
	if err != nil {
		return err
	}

	dbPath, _ := cmd.Flags().GetString("db")
	table, _ := cmd.Flags().GetString("table")
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}

	store, err := rowstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := runner.Options{Concurrency: viper.GetInt("concurrency")}
	if failFast, _ := cmd.Flags().GetBool("fail-fast"); failFast {
		opts.FailurePolicy = runner.FailurePolicyFailFast
	}

	job := runner.NewJob(table, cfg)
	job.Where, _ = cmd.Flags().GetString("where")
	job.PendingOnly, _ = cmd.Flags().GetBool("pending-only")
	job.Limit, _ = cmd.Flags().GetInt("limit")

	logger.Debug("job configured", "job_id", job.ID, "model", cfg.Model, "credential", cfg.Credential.Kind().String())
	logInfo("Enriching %s with %s...", table, cfg.Model)

	sum, runErr := runner.New(store, newEnrichment(static, stash), opts).Run(ctx, job)
	if sum != nil {
		if err := output.Print(cmd.OutOrStdout(), format, output.NewRunReport(sum)); err != nil {
			return err
		}
	}
	return runErr
}
