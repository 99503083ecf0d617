package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jmylchreest/enrichgpt/internal/version"
)

// DefaultOpenAIBaseURL is the chat completions API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1/"

// OpenAIProvider implements Provider for the OpenAI chat completions API.
// A fresh SDK client is built for every call because the API key is
// resolved per unit of work.
type OpenAIProvider struct {
	cfg ProviderConfig
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIProvider{cfg: cfg}
}

// Complete sends a chat completion request to OpenAI.
func (p *OpenAIProvider) Complete(ctx context.Context, apiKey string, req Request) (*Completion, error) {
	start := time.Now()

	capture := &errorCapture{}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(p.cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", version.UserAgent()),
		option.WithMiddleware(capture.middleware),
	}
	if p.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(p.cfg.HTTPClient))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(req.Model.APIModel),
		Messages:  openAIMessages(req.Messages),
		MaxTokens: openai.Int(int64(req.MaxTokens)),
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classify(ctx, err, capture)
	}

	if len(resp.Choices) == 0 {
		return nil, malformed(p.Name(), "no choices in response")
	}
	msg := resp.Choices[0].Message
	if !msg.JSON.Content.Valid() {
		return nil, malformed(p.Name(), "choices[0].message.content missing")
	}

	return &Completion{
		Content:      msg.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Duration: time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) classify(ctx context.Context, err error, capture *errorCapture) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		fallback := apiErr.RawJSON()
		if fallback == "" {
			fallback = apiErr.Message
		}
		return capture.httpError(p.Name(), apiErr.StatusCode, fallback, err)
	}
	// A body the SDK could not decode surfaces as a plain error.
	if status, _ := capture.get(); status != 0 {
		return capture.httpError(p.Name(), status, "", err)
	}
	return transportError(ctx, p.Name(), err)
}

func openAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			if !msg.IsMultiPart() {
				out = append(out, openai.UserMessage(msg.Content))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				switch part.Type {
				case PartText:
					parts = append(parts, openai.TextContentPart(part.Text))
				case PartImageURL:
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: part.ImageURL,
					}))
				}
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}
