// Package enrichment enriches table rows with completions.
//
// For each row the prompt template is rendered against the row, the
// credential is resolved, one completion request is sent and the result
// is written to the output column with exactly one UPDATE keyed by the
// row's primary key. Any failure leaves the row untouched.
package enrichment

import (
	"context"
	"fmt"

	"github.com/jmylchreest/enrichgpt/internal/logger"
	"github.com/jmylchreest/enrichgpt/pkg/credential"
	"github.com/jmylchreest/enrichgpt/pkg/llm"
	"github.com/jmylchreest/enrichgpt/pkg/record"
	"github.com/jmylchreest/enrichgpt/pkg/rowstore"
	"github.com/jmylchreest/enrichgpt/pkg/template"
)

const (
	Name        = "AI analysis with OpenAI GPT"
	Slug        = "gpt"
	Description = "Analyze data using OpenAI's GPT models"
	// BatchSize is always 1: each unit of work is one row.
	BatchSize = 1
)

// Enrichment composes rendering, credential resolution, completion and
// write-back. It holds no per-row state and is safe for concurrent use.
type Enrichment struct {
	resolver *credential.Resolver
	client   llm.Completer
}

// New creates an Enrichment.
func New(resolver *credential.Resolver, client llm.Completer) *Enrichment {
	if resolver == nil {
		resolver = credential.NewResolver()
	}
	return &Enrichment{resolver: resolver, client: client}
}

// Resolver returns the credential resolver.
func (e *Enrichment) Resolver() *credential.Resolver { return e.resolver }

// Initialize prepares table for cfg by creating the output column if it is
// missing. It is idempotent.
func (e *Enrichment) Initialize(ctx context.Context, db rowstore.Writer, table string, cfg Config) error {
	added, err := rowstore.EnsureTextColumn(ctx, db, table, cfg.OutputColumn)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", table, err)
	}
	if added {
		logger.InfoContext(ctx, "created output column", "table", table, "column", cfg.OutputColumn)
	}
	return nil
}

// EnrichBatch resolves the credential once and enriches the batch. Batches
// hold at most one row; an empty batch is a no-op.
func (e *Enrichment) EnrichBatch(ctx context.Context, db rowstore.Writer, table string, rows []record.Row, pks []string, cfg Config, jobID string) error {
	if len(rows) == 0 {
		return nil
	}

	apiKey, err := e.resolver.Resolve(ctx, cfg.Credential)
	if err != nil {
		return err
	}

	log := logger.With("job_id", jobID, "table", table)
	log.DebugContext(ctx, "enriching row", "model", cfg.Model)

	return e.EnrichRow(ctx, db, table, rows[0], pks, cfg, apiKey)
}

// EnrichRow renders the prompt for row, requests a completion with apiKey
// and writes the result to cfg.OutputColumn. Errors are returned as-is and
// nothing is written when any step fails.
func (e *Enrichment) EnrichRow(ctx context.Context, db rowstore.Writer, table string, row record.Row, pks []string, cfg Config, apiKey string) error {
	model, err := cfg.ResolvedModel()
	if err != nil {
		return err
	}
	key, err := record.KeyFor(row, pks)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", table, err)
	}

	prompt := template.Render(cfg.Prompt, row)
	var imageURL string
	if model.IsVision() {
		imageURL = template.RenderOptional(cfg.ImageURL, row)
	}

	req := llm.BuildRequest(model, prompt, cfg.SystemPrompt, imageURL, cfg.JSONFormat)
	comp, err := e.client.Complete(ctx, apiKey, req)
	if err != nil {
		return err
	}

	query, args := rowstore.UpdateStatement(table, cfg.OutputColumn, key, comp.Content)
	if err := db.ExecuteWrite(ctx, query, args...); err != nil {
		return fmt.Errorf("write %s.%s for %s: %w", table, cfg.OutputColumn, key, err)
	}
	return nil
}

// --- Registration ---

// Definition is the descriptor a host uses to offer and run the enrichment.
type Definition struct {
	Name          string
	Slug          string
	Description   string
	RunsInProcess bool
	BatchSize     int

	ConfigForm  func(columns []string) Form
	Initialize  func(ctx context.Context, db rowstore.Writer, table string, cfg Config) error
	EnrichBatch func(ctx context.Context, db rowstore.Writer, table string, rows []record.Row, pks []string, cfg Config, jobID string) error
}

// Definition returns e's descriptor.
func (e *Enrichment) Definition() Definition {
	return Definition{
		Name:          Name,
		Slug:          Slug,
		Description:   Description,
		RunsInProcess: true,
		BatchSize:     BatchSize,
		ConfigForm: func(columns []string) Form {
			return ConfigForm(columns, e.resolver.HasStaticKey())
		},
		Initialize:  e.Initialize,
		EnrichBatch: e.EnrichBatch,
	}
}

// Register returns the enrichments provided by this package.
func Register(e *Enrichment) []Definition {
	return []Definition{e.Definition()}
}
