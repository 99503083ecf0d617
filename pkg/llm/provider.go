// Package llm builds chat completion requests and sends them to a provider.
//
// A Request is built from a Model variant resolved once at configuration
// time: text models get a plain user message, vision models get a user
// message made of a text part and an image part. Providers translate the
// Request to their wire format and return the single completion string.
package llm

import (
	"context"
	"net/http"
	"time"
)

const (
	// MaxOutputTokens caps the generated output of every request.
	MaxOutputTokens = 1000

	// RequestTimeout bounds a single completion call.
	RequestTimeout = 60 * time.Second
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// PartType identifies a content part inside a multi-part message.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// Part is one element of a multi-part message.
type Part struct {
	Type     PartType
	Text     string
	ImageURL string
}

// TextPart returns a text content part.
func TextPart(text string) Part { return Part{Type: PartText, Text: text} }

// ImagePart returns an image URL content part.
func ImagePart(url string) Part { return Part{Type: PartImageURL, ImageURL: url} }

// Message is a chat message. Content is used when Parts is empty.
type Message struct {
	Role    Role
	Content string
	Parts   []Part
}

// IsMultiPart reports whether the message is sent as a list of parts.
func (m Message) IsMultiPart() bool { return len(m.Parts) > 0 }

// Request is a single completion request. Build it with BuildRequest;
// a Request is never reused across calls.
type Request struct {
	Model     Model
	Messages  []Message
	JSONMode  bool
	MaxTokens int
}

// Usage tracks token consumption. It is reported to observers only.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is the result of a completion call.
type Completion struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
	Duration     time.Duration
}

// Provider sends a Request to one completion service.
type Provider interface {
	// Complete sends req authenticated with apiKey.
	Complete(ctx context.Context, apiKey string, req Request) (*Completion, error)

	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	// BaseURL overrides the provider's API endpoint.
	BaseURL string
	// HTTPClient overrides the transport. Timeouts are applied per call
	// through the context, so the client should not set its own.
	HTTPClient *http.Client
}
