package rowstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmylchreest/enrichgpt/pkg/record"
)

// ErrorsTable records per-row enrichment failures.
const ErrorsTable = "_enrichment_errors"

const createErrorsTable = `create table if not exists _enrichment_errors (
	id integer primary key,
	job_id text not null,
	row_pks text not null,
	error text not null,
	created_at text not null
)`

// LedgerEntry is one recorded failure.
type LedgerEntry struct {
	JobID     string    `json:"job_id" yaml:"job_id"`
	RowPKs    []any     `json:"row_pks" yaml:"row_pks"`
	Error     string    `json:"error" yaml:"error"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// EnsureErrorsTable creates the errors ledger if needed.
func (s *Store) EnsureErrorsTable(ctx context.Context) error {
	return s.ExecuteWrite(ctx, createErrorsTable)
}

// RecordError appends a failure for the row identified by pk. The caller is
// responsible for stripping secrets from msg.
func (s *Store) RecordError(ctx context.Context, jobID string, pk record.PrimaryKey, msg string) error {
	pks, err := json.Marshal(pk.Values())
	if err != nil {
		return fmt.Errorf("encode row pks: %w", err)
	}
	return s.ExecuteWrite(ctx,
		`insert into _enrichment_errors (job_id, row_pks, error, created_at) values (?, ?, ?, ?)`,
		jobID, string(pks), msg, time.Now().UTC().Format(time.RFC3339),
	)
}

// Errors returns the failures recorded for jobID in insertion order.
func (s *Store) Errors(ctx context.Context, jobID string) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select job_id, row_pks, error, created_at from _enrichment_errors where job_id = ? order by id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query errors ledger: %w", err)
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var (
			e       LedgerEntry
			pks     string
			created sql.NullString
		)
		if err := rows.Scan(&e.JobID, &pks, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if err := json.Unmarshal([]byte(pks), &e.RowPKs); err != nil {
			return nil, fmt.Errorf("decode row pks: %w", err)
		}
		if created.Valid {
			e.CreatedAt, _ = time.Parse(time.RFC3339, created.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
