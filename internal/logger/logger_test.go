package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// resetLogger resets the logger to default state for test isolation
func resetLogger() {
	Init(Options{})
}

// --- Levels ---

func TestInit_Levels(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		log     func(string)
		visible bool
	}{
		{"info at default", Options{}, func(m string) { Info(m) }, true},
		{"debug hidden at default", Options{}, func(m string) { Debug(m) }, false},
		{"debug shown with Debug", Options{Debug: true}, func(m string) { Debug(m) }, true},
		{"warn at default", Options{}, func(m string) { Warn(m) }, true},
		{"info hidden when quiet", Options{Quiet: true}, func(m string) { Info(m) }, false},
		{"warn hidden when quiet", Options{Quiet: true}, func(m string) { Warn(m) }, false},
		{"error shown when quiet", Options{Quiet: true}, func(m string) { Error(m) }, true},
		{"quiet overrides debug", Options{Debug: true, Quiet: true}, func(m string) { Debug(m) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			opts := tt.opts
			opts.Output = buf
			Init(opts)
			defer resetLogger()

			tt.log("level probe")
			if got := strings.Contains(buf.String(), "level probe"); got != tt.visible {
				t.Errorf("visible = %v, want %v (output %q)", got, tt.visible, buf.String())
			}
		})
	}
}

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("json message", "rows", 3)

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Errorf("expected JSON output, got %q", output)
	}
	if !strings.Contains(output, `"msg":"json message"`) || !strings.Contains(output, `"rows":3`) {
		t.Errorf("missing fields in %q", output)
	}
}

func TestInit_CustomLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Logger: slog.New(slog.NewTextHandler(buf, nil))})
	defer resetLogger()

	Info("from custom")
	if !strings.Contains(buf.String(), "from custom") {
		t.Error("expected custom logger to receive messages")
	}
}

func TestWith_ReturnsLoggerWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	With("job", "abc").Info("tagged")

	if !strings.Contains(buf.String(), "job=abc") {
		t.Errorf("expected attribute in output, got %q", buf.String())
	}
}

func TestContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	ctx := context.Background()
	DebugContext(ctx, "ctx debug")
	InfoContext(ctx, "ctx info")
	WarnContext(ctx, "ctx warn")
	ErrorContext(ctx, "ctx error")

	for _, msg := range []string{"ctx debug", "ctx info", "ctx warn", "ctx error"} {
		if !strings.Contains(buf.String(), msg) {
			t.Errorf("expected %q in output", msg)
		}
	}
}

// --- Redaction ---

func TestRedact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"no key here", "no key here"},
		{"Incorrect API key provided: sk-abc123XYZ", "Incorrect API key provided: sk-****"},
		{"sk- alone", "sk- alone"},
		{"two sk-aaaa1111 and sk-bbbb_2222", "two sk-**** and sk-****"},
	}
	for _, tt := range tests {
		if got := Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandler_RedactsAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	Warn("upstream rejected key",
		"body", "invalid key sk-live-secret-value",
		"error", errors.New("bad key sk-other-secret"),
	)

	output := buf.String()
	if strings.Contains(output, "sk-live-secret-value") || strings.Contains(output, "sk-other-secret") {
		t.Errorf("key leaked into log output: %q", output)
	}
	if !strings.Contains(output, Redacted) {
		t.Errorf("expected redaction marker, got %q", output)
	}
}
