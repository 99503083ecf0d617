// Package runner schedules enrichment jobs over a SQLite table.
//
// A job selects its rows once, then hands them one at a time to a pool of
// workers. Each row is an independent unit of work; failures are recorded
// in the errors ledger and do not stop the job unless the policy says so.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/enrichgpt/internal/logger"
	"github.com/jmylchreest/enrichgpt/pkg/credential"
	"github.com/jmylchreest/enrichgpt/pkg/enrichment"
	"github.com/jmylchreest/enrichgpt/pkg/record"
	"github.com/jmylchreest/enrichgpt/pkg/rowstore"
)

// FailurePolicy decides what a row failure does to the rest of the job.
type FailurePolicy int

const (
	// FailurePolicyContinue records the failure and moves on.
	FailurePolicyContinue FailurePolicy = iota
	// FailurePolicyFailFast stops the job at the first failure.
	FailurePolicyFailFast
)

// Options configures a Runner.
type Options struct {
	// Concurrency is the number of rows in flight at once.
	Concurrency   int
	FailurePolicy FailurePolicy
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// Job is one enrichment run over a table.
type Job struct {
	ID     string
	Table  string
	Config enrichment.Config

	// Where is an optional SQL filter; WhereArgs bind its placeholders.
	Where     string
	WhereArgs []any
	// PendingOnly skips rows whose output column is already set.
	PendingOnly bool
	Limit       int
}

// NewJob creates a job with a fresh ID.
func NewJob(table string, cfg enrichment.Config) Job {
	return Job{ID: uuid.NewString(), Table: table, Config: cfg}
}

// RowError is a failed row.
type RowError struct {
	Key record.PrimaryKey
	Err error
}

// Summary reports the outcome of a job.
type Summary struct {
	JobID     string        `json:"job_id" yaml:"job_id"`
	Table     string        `json:"table" yaml:"table"`
	Model     string        `json:"model" yaml:"model"`
	Selected  int           `json:"selected" yaml:"selected"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Errors    []RowError    `json:"-" yaml:"-"`
}

// Runner executes jobs.
type Runner struct {
	store *rowstore.Store
	def   enrichment.Definition
	opts  Options
}

// New creates a Runner for store.
func New(store *rowstore.Store, e *enrichment.Enrichment, opts Options) *Runner {
	return &Runner{store: store, def: e.Definition(), opts: opts.withDefaults()}
}

// Run executes job and returns its summary. The returned error is non-nil
// for job-level failures: invalid configuration, unknown table, credential
// failures, fail-fast aborts and cancellation.
func (r *Runner) Run(ctx context.Context, job Job) (*Summary, error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := job.Config.Validate(); err != nil {
		return nil, err
	}

	pks, err := r.store.PrimaryKeys(ctx, job.Table)
	if err != nil {
		return nil, err
	}
	if err := r.def.Initialize(ctx, r.store, job.Table, job.Config); err != nil {
		return nil, err
	}
	if err := r.store.EnsureErrorsTable(ctx); err != nil {
		return nil, err
	}

	q := rowstore.Query{
		Table:        job.Table,
		Where:        job.Where,
		Args:         job.WhereArgs,
		IncludeRowID: len(pks) == 1 && pks[0] == "rowid",
		Limit:        job.Limit,
	}
	if job.PendingOnly {
		q.PendingColumn = job.Config.OutputColumn
	}
	rows, err := r.store.SelectRows(ctx, q)
	if err != nil {
		return nil, err
	}

	log := logger.With("job_id", job.ID, "table", job.Table)
	log.InfoContext(ctx, "starting enrichment", "rows", len(rows), "model", job.Config.Model, "concurrency", r.opts.Concurrency)

	sum := &Summary{
		JobID:    job.ID,
		Table:    job.Table,
		Model:    job.Config.Model,
		Selected: len(rows),
	}
	runErr := r.process(ctx, job, rows, pks, sum)
	sum.Skipped = sum.Selected - sum.Succeeded - sum.Failed
	sum.Duration = time.Since(start)

	log.InfoContext(ctx, "enrichment finished",
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"duration", sum.Duration,
	)
	return sum, runErr
}

func (r *Runner) process(ctx context.Context, job Job, rows []record.Row, pks []string, sum *Summary) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	jobs := make(chan record.Row)
	worker := func() {
		defer wg.Done()
		for row := range jobs {
			if runCtx.Err() != nil {
				return
			}
			err := r.def.EnrichBatch(runCtx, r.store, job.Table, []record.Row{row}, pks, job.Config, job.ID)

			// Rows interrupted by an abort count as skipped.
			canceled := err != nil && runCtx.Err() != nil && errors.Is(err, context.Canceled)

			mu.Lock()
			switch {
			case err == nil:
				sum.Succeeded++
			case !canceled:
				sum.Failed++
			}
			mu.Unlock()

			if err == nil || canceled {
				continue
			}
			r.recordFailure(ctx, job, row, pks, err, sum, &mu)

			var ake *credential.APIKeyError
			if errors.As(err, &ake) || r.opts.FailurePolicy == FailurePolicyFailFast {
				fail(err)
				return
			}
		}
	}

	for i := 0; i < r.opts.Concurrency; i++ {
		wg.Add(1)
		go worker()
	}

feed:
	for _, row := range rows {
		select {
		case jobs <- row:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return fmt.Errorf("job %s aborted: %w", job.ID, err)
	}
	return ctx.Err()
}

func (r *Runner) recordFailure(ctx context.Context, job Job, row record.Row, pks []string, err error, sum *Summary, mu *sync.Mutex) {
	key, keyErr := record.KeyFor(row, pks)
	if keyErr != nil {
		logger.ErrorContext(ctx, "row without primary key", "job_id", job.ID, "error", keyErr)
		return
	}

	msg := logger.Redact(err.Error())
	logger.WarnContext(ctx, "row enrichment failed", "job_id", job.ID, "table", job.Table, "pk", key.String(), "error", msg)

	mu.Lock()
	sum.Errors = append(sum.Errors, RowError{Key: key, Err: err})
	mu.Unlock()

	if werr := r.store.RecordError(context.WithoutCancel(ctx), job.ID, key, msg); werr != nil {
		logger.ErrorContext(ctx, "failed to record row error", "job_id", job.ID, "error", werr)
	}
}
