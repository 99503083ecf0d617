package output

import (
	"bufio"
	"fmt"
	"io"
)

// HumanTexter is implemented by results with a terminal rendering.
type HumanTexter interface {
	HumanText() string
}

// TextWriter prints each item on its own block as it is written.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write prints item using HumanText when available, otherwise %v.
func (w *TextWriter) Write(item any) error {
	var text string
	switch v := item.(type) {
	case HumanTexter:
		text = v.HumanText()
	case fmt.Stringer:
		text = v.String()
	default:
		text = fmt.Sprintf("%v", v)
	}
	if _, err := w.w.WriteString(text + "\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteAll prints every item.
func (w *TextWriter) WriteAll(items []any) error {
	for _, item := range items {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *TextWriter) Flush() error { return w.w.Flush() }

// Close flushes the writer.
func (w *TextWriter) Close() error { return w.Flush() }
