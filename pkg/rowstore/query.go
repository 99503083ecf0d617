package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmylchreest/enrichgpt/pkg/record"
)

// Query selects rows to enrich.
type Query struct {
	Table string
	// Where is an optional SQL boolean expression; Args bind its placeholders.
	Where string
	Args  []any
	// PendingColumn restricts the selection to rows where this column is null.
	PendingColumn string
	// IncludeRowID prepends rowid to the selected columns.
	IncludeRowID bool
	Limit        int
}

func (q Query) clause() (string, []any) {
	var conds []string
	if strings.TrimSpace(q.Where) != "" {
		conds = append(conds, "("+q.Where+")")
	}
	if q.PendingColumn != "" {
		conds = append(conds, QuoteIdent(q.PendingColumn)+" is null")
	}
	if len(conds) == 0 {
		return "", q.Args
	}
	return " where " + strings.Join(conds, " and "), q.Args
}

// SelectRows returns the rows matched by q.
func (s *Store) SelectRows(ctx context.Context, q Query) ([]record.Row, error) {
	cols := "*"
	if q.IncludeRowID {
		cols = "rowid, *"
	}
	where, args := q.clause()
	stmt := fmt.Sprintf("select %s from %s%s", cols, QuoteIdent(q.Table), where)
	if q.Limit > 0 {
		stmt += fmt.Sprintf(" limit %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select rows from %s: %w", q.Table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// CountRows returns how many rows q matches.
func (s *Store) CountRows(ctx context.Context, q Query) (int, error) {
	where, args := q.clause()
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("select count(*) from %s%s", QuoteIdent(q.Table), where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", q.Table, err)
	}
	return n, nil
}

// GetRow returns the row identified by pk.
func (s *Store) GetRow(ctx context.Context, table string, pk record.PrimaryKey) (record.Row, error) {
	cols := "*"
	for _, p := range pk {
		if p.Column == "rowid" {
			cols = "rowid, *"
		}
	}
	stmt := fmt.Sprintf("select %s from %s where %s", cols, QuoteIdent(table), keyClause(pk))
	rows, err := s.db.QueryContext(ctx, stmt, pk.Values()...)
	if err != nil {
		return record.Row{}, fmt.Errorf("get row from %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return record.Row{}, err
	}
	if len(out) == 0 {
		return record.Row{}, fmt.Errorf("%w: %s %s", ErrNoRows, table, pk)
	}
	return out[0], nil
}

func scanRows(rows *sql.Rows) ([]record.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	blob := make([]bool, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			blob[i] = strings.EqualFold(ct.DatabaseTypeName(), "BLOB")
		}
	}

	var out []record.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok && !blob[i] {
				vals[i] = string(b)
			}
		}
		out = append(out, record.NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
