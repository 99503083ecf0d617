package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ErrMalformedResponse is wrapped by CompletionError when the service
// answered successfully but without a usable completion.
var ErrMalformedResponse = errors.New("malformed response")

// CompletionError reports a failed completion call. It is never retried.
type CompletionError struct {
	Provider   string
	StatusCode int    // non-zero for HTTP failures
	Body       string // response body for HTTP failures
	Timeout    bool
	Err        error
}

func (e *CompletionError) Error() string {
	prefix := "completion"
	if e.Provider != "" {
		prefix = e.Provider + " completion"
	}
	switch {
	case e.Timeout:
		return prefix + ": request timed out"
	case e.StatusCode != 0:
		if e.Body == "" {
			return fmt.Sprintf("%s: HTTP %d", prefix, e.StatusCode)
		}
		return fmt.Sprintf("%s: HTTP %d: %s", prefix, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix + ": failed"
	}
}

func (e *CompletionError) Unwrap() error { return e.Err }

// IsMalformed reports whether the error is a malformed response.
func (e *CompletionError) IsMalformed() bool { return errors.Is(e.Err, ErrMalformedResponse) }

func malformed(provider, detail string) *CompletionError {
	return &CompletionError{Provider: provider, Err: fmt.Errorf("%w: %s", ErrMalformedResponse, detail)}
}

// transportError classifies an error that did not come with an HTTP status.
func transportError(ctx context.Context, provider string, err error) *CompletionError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &CompletionError{Provider: provider, Timeout: true, Err: err}
	}
	return &CompletionError{Provider: provider, Err: err}
}

// errorCapture keeps the status and raw body of a failed HTTP response.
// The SDKs only expose the body when it parses as JSON; gateways often
// answer with text or HTML.
type errorCapture struct {
	mu     sync.Mutex
	status int
	body   string
}

// middleware matches option.Middleware in both SDKs.
func (c *errorCapture) middleware(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	resp, err := next(req)
	if err != nil || resp == nil || resp.StatusCode < 400 || resp.Body == nil {
		return resp, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	c.mu.Lock()
	c.status = resp.StatusCode
	c.body = strings.TrimSpace(string(raw))
	c.mu.Unlock()
	return resp, readErr
}

func (c *errorCapture) get() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.body
}

// httpError builds the CompletionError for a non-2xx answer. The captured
// body wins over the SDK's view of it; fallback is used when nothing was
// captured.
func (c *errorCapture) httpError(provider string, status int, fallback string, err error) *CompletionError {
	capturedStatus, body := c.get()
	if status == 0 {
		status = capturedStatus
	}
	if body == "" {
		body = fallback
	}
	return &CompletionError{Provider: provider, StatusCode: status, Body: body, Err: err}
}
