package rowstore

import (
	"context"
	"database/sql"
	"fmt"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type columnInfo struct {
	name string
	pk   int
}

func tableInfo(ctx context.Context, q queryer, table string) ([]columnInfo, error) {
	rows, err := q.QueryContext(ctx, `select name, pk from pragma_table_info(?) order by cid`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var c columnInfo
		if err := rows.Scan(&c.name, &c.pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	return cols, nil
}

// TableColumns returns the table's column names in declaration order.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	info, err := tableInfo(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(info))
	for i, c := range info {
		names[i] = c.name
	}
	return names, nil
}

// PrimaryKeys returns the table's primary key columns in key order, or
// ["rowid"] when the table declares none.
func (s *Store) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	info, err := tableInfo(ctx, s.db, table)
	if err != nil {
		return nil, err
	}

	byPos := map[int]string{}
	for _, c := range info {
		if c.pk > 0 {
			byPos[c.pk] = c.name
		}
	}
	if len(byPos) == 0 {
		return []string{"rowid"}, nil
	}
	pks := make([]string, 0, len(byPos))
	for i := 1; i <= len(byPos); i++ {
		pks = append(pks, byPos[i])
	}
	return pks, nil
}

// EnsureTextColumn adds column as text if the table lacks it. It reports
// whether the column was added.
func (s *Store) EnsureTextColumn(ctx context.Context, table, column string) (bool, error) {
	return EnsureTextColumn(ctx, s, table, column)
}

// EnsureTextColumn adds column to table through w when missing.
func EnsureTextColumn(ctx context.Context, w Writer, table, column string) (bool, error) {
	var added bool
	err := w.ExecuteWriteFn(ctx, func(tx *sql.Tx) error {
		info, err := tableInfo(ctx, tx, table)
		if err != nil {
			return err
		}
		for _, c := range info {
			if c.name == column {
				return nil
			}
		}
		stmt := fmt.Sprintf("alter table %s add column %s text", QuoteIdent(table), QuoteIdent(column))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, column, err)
		}
		added = true
		return nil
	})
	return added, err
}
