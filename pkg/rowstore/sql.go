package rowstore

import (
	"regexp"
	"strings"

	"github.com/jmylchreest/enrichgpt/pkg/record"
)

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Keywords that cannot appear bare as a table or column name.
var reserved = map[string]bool{
	"abort": true, "add": true, "all": true, "alter": true, "and": true, "as": true,
	"between": true, "by": true, "case": true, "check": true, "collate": true,
	"column": true, "constraint": true, "create": true, "default": true,
	"delete": true, "distinct": true, "drop": true, "else": true, "end": true,
	"escape": true, "except": true, "exists": true, "foreign": true, "from": true,
	"group": true, "having": true, "in": true, "index": true, "insert": true,
	"intersect": true, "into": true, "is": true, "join": true, "key": true,
	"limit": true, "not": true, "null": true, "on": true, "or": true,
	"order": true, "primary": true, "references": true, "select": true,
	"set": true, "table": true, "then": true, "to": true, "transaction": true,
	"union": true, "unique": true, "update": true, "using": true,
	"values": true, "when": true, "where": true, "with": true,
}

// IsPlainIdent reports whether name can be written without quoting.
func IsPlainIdent(name string) bool {
	return plainIdent.MatchString(name) && !reserved[strings.ToLower(name)]
}

// QuoteIdent returns name bare when it is a plain identifier, otherwise
// double-quoted with embedded quotes doubled.
func QuoteIdent(name string) string {
	if IsPlainIdent(name) {
		return name
	}
	return ForceQuote(name)
}

// ForceQuote always double-quotes name.
func ForceQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// UpdateStatement builds the single-row write-back:
//
//	update <table> set <column> = ? where "<pk1>" = ? and "<pk2>" = ?
//
// The returned args are value followed by the key values in key order.
func UpdateStatement(table, column string, pk record.PrimaryKey, value any) (string, []any) {
	var b strings.Builder
	b.WriteString("update ")
	b.WriteString(QuoteIdent(table))
	b.WriteString(" set ")
	b.WriteString(QuoteIdent(column))
	b.WriteString(" = ? where ")

	args := make([]any, 0, len(pk)+1)
	args = append(args, value)
	for i, part := range pk {
		if i > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(keyIdent(part.Column))
		b.WriteString(" = ?")
		args = append(args, part.Value)
	}
	return b.String(), args
}

// keyIdent quotes a primary key column. The implicit rowid stays bare.
func keyIdent(col string) string {
	if col == "rowid" {
		return col
	}
	return ForceQuote(col)
}

// keyClause renders `"pk1" = ? and "pk2" = ?` for lookups.
func keyClause(pk record.PrimaryKey) string {
	parts := make([]string, len(pk))
	for i, p := range pk {
		parts[i] = keyIdent(p.Column) + " = ?"
	}
	return strings.Join(parts, " and ")
}
