// Package record holds the per-row data model shared by the renderer,
// the row store and the enrichment orchestrator.
package record

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is an ordered column -> scalar mapping for exactly one table row.
// A Row is read-only once constructed.
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow creates a Row from parallel column and value slices.
// Extra values are ignored; missing values are nil.
func NewRow(columns []string, values []any) Row {
	r := Row{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]any, len(columns)),
	}
	for i, c := range columns {
		if _, dup := r.values[c]; dup {
			continue
		}
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.columns = append(r.columns, c)
		r.values[c] = v
	}
	return r
}

// FromMap creates a Row from a map. Columns are sorted by name since
// map iteration order is not stable.
func FromMap(m map[string]any) Row {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = m[c]
	}
	return NewRow(cols, vals)
}

// Columns returns the column names in row order.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Value returns the value stored for a column.
func (r Row) Value(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.columns) }

// Map returns a copy of the row as a map.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// KeyPart is one (column, value) pair of a primary key.
type KeyPart struct {
	Column string
	Value  any
}

// PrimaryKey identifies one row within its table. Order matters: it is
// the order of the where-clause predicates and their parameters.
type PrimaryKey []KeyPart

// KeyFor builds the primary key tuple of a row from the table's key columns.
func KeyFor(row Row, pks []string) (PrimaryKey, error) {
	if len(pks) == 0 {
		return nil, fmt.Errorf("no primary key columns")
	}
	key := make(PrimaryKey, 0, len(pks))
	for _, pk := range pks {
		v, ok := row.Value(pk)
		if !ok {
			return nil, fmt.Errorf("row has no value for primary key column %q", pk)
		}
		key = append(key, KeyPart{Column: pk, Value: v})
	}
	return key, nil
}

// Columns returns the key column names in order.
func (k PrimaryKey) Columns() []string {
	out := make([]string, len(k))
	for i, p := range k {
		out[i] = p.Column
	}
	return out
}

// Values returns the key values in order.
func (k PrimaryKey) Values() []any {
	out := make([]any, len(k))
	for i, p := range k {
		out[i] = p.Value
	}
	return out
}

// String renders the key values as text, e.g. "1" or "1,abc".
func (k PrimaryKey) String() string {
	s := ""
	for i, p := range k {
		if i > 0 {
			s += ","
		}
		s += Text(p.Value)
	}
	return s
}

// Text coerces a scalar to its string form. nil becomes "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return formatFloat(float64(t), 32)
	case float64:
		return formatFloat(t, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// formatFloat writes the shortest round-tripping form with a trailing ".0"
// on integral values, switching to exponent notation below 1e-4 and from
// 1e16 up: 2 -> "2.0", 1e21 -> "1e+21", 1e-05 -> "1e-05".
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(f, 'e', -1, bits)
	mantissa, exp, _ := strings.Cut(sci, "e")
	if e, err := strconv.Atoi(exp); err == nil && (e < -4 || e >= 16) {
		return mantissa + "e" + exp
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
