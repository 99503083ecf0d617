// Package output renders command results as text, JSON, JSONL or YAML.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format is an output encoding.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted values of the --output flag.
var Formats = []Format{FormatText, FormatJSON, FormatJSONL, FormatYAML}

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %q", s)
}

// Writer serializes results. Buffered formats emit on Flush.
type Writer interface {
	Write(item any) error
	WriteAll(items []any) error
	Flush() error
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty toggles indented JSON.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) { c.pretty = enabled }
}

// WithIndent sets the JSON indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) { c.indent = indent }
}

// NewWriter creates a writer for format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{pretty: true, indent: "  "}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatText:
		return NewTextWriter(w), nil
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Print writes items to w in format and flushes.
func Print(w io.Writer, format Format, items ...any) error {
	out, err := NewWriter(w, format)
	if err != nil {
		return err
	}
	if err := out.WriteAll(items); err != nil {
		return err
	}
	return out.Close()
}

// buffer collects items for formats that emit a single document.
type buffer struct {
	items []any
}

func (b *buffer) Write(item any) error {
	b.items = append(b.items, item)
	return nil
}

func (b *buffer) WriteAll(items []any) error {
	b.items = append(b.items, items...)
	return nil
}

// document returns the lone item unwrapped, otherwise the whole list.
func (b *buffer) document() any {
	if len(b.items) == 1 {
		return b.items[0]
	}
	return b.items
}
