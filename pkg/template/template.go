// Package template renders row data into prompt and image URL templates.
//
// Placeholders take the form {{ column }} or {{column}}. Rendering is a
// single left-to-right pass: substituted values are never re-scanned, and
// the output does not depend on the order in which a row lists its columns.
// Placeholders naming a column the row does not have are left as they are.
package template

import (
	"strings"

	"github.com/jmylchreest/enrichgpt/pkg/record"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Render substitutes every {{ column }} and {{column}} placeholder in tmpl
// with the row's value for that column. nil values render as "".
func Render(tmpl string, row record.Row) string {
	if !strings.Contains(tmpl, openDelim) {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	for {
		i := strings.Index(rest, openDelim)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		rest = rest[i:]

		j := strings.Index(rest[len(openDelim):], closeDelim)
		if j < 0 {
			b.WriteString(rest)
			break
		}
		inner := rest[len(openDelim) : len(openDelim)+j]

		if v, ok := lookup(inner, row); ok {
			b.WriteString(record.Text(v))
			rest = rest[len(openDelim)+j+len(closeDelim):]
			continue
		}

		// Not a placeholder we know: emit one brace and rescan, so that
		// "{{{ name }}" still matches the placeholder starting one byte later.
		b.WriteByte(rest[0])
		rest = rest[1:]
	}
	return b.String()
}

// RenderOptional renders an optional template such as an image URL.
// An empty template stays empty.
func RenderOptional(tmpl string, row record.Row) string {
	if tmpl == "" {
		return ""
	}
	return Render(tmpl, row)
}

// Placeholders returns the column names referenced by tmpl, in order of
// first appearance, whether or not they exist in any row.
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)

	rest := tmpl
	for {
		i := strings.Index(rest, openDelim)
		if i < 0 {
			return names
		}
		rest = rest[i+len(openDelim):]
		j := strings.Index(rest, closeDelim)
		if j < 0 {
			return names
		}
		name := columnName(rest[:j])
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		rest = rest[j+len(closeDelim):]
	}
}

// Default builds the default prompt template for a set of columns:
// "{{ a }} {{ b }} ...".
func Default(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = openDelim + " " + c + " " + closeDelim
	}
	return strings.Join(parts, " ")
}

// lookup matches the text between the braces against the row. Only the
// two exact spellings "name" and " name " are placeholders.
func lookup(inner string, row record.Row) (any, bool) {
	if v, ok := row.Value(inner); ok && inner != "" {
		return v, true
	}
	if len(inner) >= 3 && inner[0] == ' ' && inner[len(inner)-1] == ' ' {
		return row.Value(inner[1 : len(inner)-1])
	}
	return nil, false
}

func columnName(inner string) string {
	if len(inner) >= 3 && inner[0] == ' ' && inner[len(inner)-1] == ' ' {
		return inner[1 : len(inner)-1]
	}
	return inner
}
