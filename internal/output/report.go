package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/enrichgpt/internal/logger"
	"github.com/jmylchreest/enrichgpt/internal/runner"
	"github.com/jmylchreest/enrichgpt/pkg/llm"
	"github.com/jmylchreest/enrichgpt/pkg/rowstore"
)

// RunReport is the printable outcome of an enrichment job.
type RunReport struct {
	JobID      string       `json:"job_id" yaml:"job_id"`
	Table      string       `json:"table" yaml:"table"`
	Model      string       `json:"model" yaml:"model"`
	Selected   int          `json:"selected" yaml:"selected"`
	Succeeded  int          `json:"succeeded" yaml:"succeeded"`
	Failed     int          `json:"failed" yaml:"failed"`
	Skipped    int          `json:"skipped" yaml:"skipped"`
	DurationMs int64        `json:"duration_ms" yaml:"duration_ms"`
	Errors     []RowFailure `json:"errors,omitempty" yaml:"errors,omitempty"`

	duration time.Duration
}

// RowFailure is one failed row in a RunReport.
type RowFailure struct {
	PK    string `json:"pk" yaml:"pk"`
	Error string `json:"error" yaml:"error"`
}

// NewRunReport converts a runner summary. API keys in error text are masked.
func NewRunReport(s *runner.Summary) RunReport {
	r := RunReport{
		JobID:      s.JobID,
		Table:      s.Table,
		Model:      s.Model,
		Selected:   s.Selected,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		DurationMs: s.Duration.Milliseconds(),
		duration:   s.Duration,
	}
	for _, e := range s.Errors {
		r.Errors = append(r.Errors, RowFailure{PK: e.Key.String(), Error: logger.Redact(e.Err.Error())})
	}
	return r
}

// HumanText implements HumanTexter.
func (r RunReport) HumanText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Enriched %s of %s rows in %s with %s",
		humanize.Comma(int64(r.Succeeded)), humanize.Comma(int64(r.Selected)), r.Table, r.Model)
	if r.duration > 0 {
		rate := float64(r.Succeeded) / r.duration.Seconds()
		fmt.Fprintf(&sb, " (%s, %s rows/s)", r.duration.Round(time.Millisecond), humanize.FtoaWithDigits(rate, 2))
	}
	if r.Failed > 0 || r.Skipped > 0 {
		fmt.Fprintf(&sb, "\n  failed: %s  skipped: %s", humanize.Comma(int64(r.Failed)), humanize.Comma(int64(r.Skipped)))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "\n  pk %s: %s", e.PK, e.Error)
	}
	fmt.Fprintf(&sb, "\n  job: %s", r.JobID)
	return sb.String()
}

// ModelRow is one line of the models listing.
type ModelRow struct {
	ID       string `json:"id" yaml:"id"`
	Label    string `json:"label" yaml:"label"`
	Kind     string `json:"kind" yaml:"kind"`
	Provider string `json:"provider" yaml:"provider"`
	APIModel string `json:"api_model" yaml:"api_model"`
	JSONMode bool   `json:"json_mode" yaml:"json_mode"`
}

// NewModelRow converts a catalog entry.
func NewModelRow(m llm.Model) ModelRow {
	return ModelRow{
		ID:       m.ID,
		Label:    m.Label,
		Kind:     m.Kind.String(),
		Provider: m.Provider,
		APIModel: m.APIModel,
		JSONMode: m.JSONMode,
	}
}

// HumanText implements HumanTexter.
func (m ModelRow) HumanText() string {
	flags := m.Kind
	if m.JSONMode {
		flags += ",json"
	}
	return fmt.Sprintf("%-24s %-10s %-12s %s", m.ID, m.Provider, flags, m.APIModel)
}

// TokenEstimate is the printable result of `enrichgpt estimate`.
type TokenEstimate struct {
	Model           string `json:"model" yaml:"model"`
	EstimatedTokens int    `json:"estimated_tokens" yaml:"estimated_tokens"`
	Rows            int    `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Total is the estimate multiplied across rows.
func (t TokenEstimate) Total() int {
	if t.Rows <= 0 {
		return t.EstimatedTokens
	}
	return t.EstimatedTokens * t.Rows
}

// HumanText implements HumanTexter.
func (t TokenEstimate) HumanText() string {
	if t.Rows <= 0 {
		return fmt.Sprintf("~%s prompt tokens per row (%s)", humanize.Comma(int64(t.EstimatedTokens)), t.Model)
	}
	return fmt.Sprintf("~%s prompt tokens per row, ~%s across %s rows (%s)",
		humanize.Comma(int64(t.EstimatedTokens)), humanize.Comma(int64(t.Total())), humanize.Comma(int64(t.Rows)), t.Model)
}

// LedgerRow is a recorded row failure.
type LedgerRow struct {
	rowstore.LedgerEntry `yaml:",inline"`
}

// HumanText implements HumanTexter.
func (l LedgerRow) HumanText() string {
	pks := make([]string, len(l.RowPKs))
	for i, v := range l.RowPKs {
		pks[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%s  pk %s  %s", humanize.Time(l.CreatedAt), strings.Join(pks, ","), l.Error)
}
