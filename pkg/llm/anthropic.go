package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jmylchreest/enrichgpt/internal/version"
)

// AnthropicProvider implements Provider for the Anthropic messages API.
// Anthropic has no response_format, so catalog models served here never
// enable JSON mode.
type AnthropicProvider struct {
	cfg ProviderConfig
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	return &AnthropicProvider{cfg: cfg}
}

// Complete sends a message request to Anthropic.
func (p *AnthropicProvider) Complete(ctx context.Context, apiKey string, req Request) (*Completion, error) {
	start := time.Now()

	capture := &errorCapture{}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", version.UserAgent()),
		option.WithMiddleware(capture.middleware),
	}
	if p.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.cfg.BaseURL))
	}
	if p.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(p.cfg.HTTPClient))
	}
	client := anthropic.NewClient(opts...)

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	var systemPrompt string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Content
		case RoleUser:
			if !msg.IsMultiPart() {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
				continue
			}
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				switch part.Type {
				case PartText:
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				case PartImageURL:
					blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: part.ImageURL}))
				}
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model.APIModel),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.classify(ctx, err, capture)
	}

	var content strings.Builder
	var found bool
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
			found = true
		}
	}
	if !found {
		return nil, malformed(p.Name(), "no text block in response")
	}

	return &Completion{
		Content:      content.String(),
		Model:        string(resp.Model),
		FinishReason: string(resp.StopReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		Duration: time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) classify(ctx context.Context, err error, capture *errorCapture) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return capture.httpError(p.Name(), apiErr.StatusCode, apiErr.RawJSON(), err)
	}
	if status, _ := capture.get(); status != 0 {
		return capture.httpError(p.Name(), status, "", err)
	}
	return transportError(ctx, p.Name(), err)
}
