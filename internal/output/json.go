package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter emits one JSON document on Flush: the item itself when only
// one was written, otherwise an array.
type JSONWriter struct {
	buffer
	w      *bufio.Writer
	pretty bool
	indent string
}

// NewJSONWriter creates a JSONWriter.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{w: bufio.NewWriter(w), pretty: pretty, indent: indent}
}

// Flush writes the buffered document.
func (w *JSONWriter) Flush() error {
	if len(w.items) == 0 {
		return w.w.Flush()
	}
	enc := json.NewEncoder(w.w)
	if w.pretty {
		enc.SetIndent("", w.indent)
	}
	if err := enc.Encode(w.document()); err != nil {
		return err
	}
	w.items = w.items[:0]
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error { return w.Flush() }

// JSONLWriter streams one compact JSON object per line.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONLWriter.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: json.NewEncoder(bw)}
}

// Write emits item as a line.
func (w *JSONLWriter) Write(item any) error {
	if err := w.enc.Encode(item); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteAll emits each item as a line.
func (w *JSONLWriter) WriteAll(items []any) error {
	for _, item := range items {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error { return w.w.Flush() }

// Close flushes the writer.
func (w *JSONLWriter) Close() error { return w.Flush() }
