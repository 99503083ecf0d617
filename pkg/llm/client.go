package llm

import (
	"context"
	"fmt"
	"time"
)

// Completer is the single-call completion contract used by enrichments.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req Request) (*Completion, error)
}

// Client routes requests to the provider named by the request's model and
// enforces the per-call timeout. It never retries.
type Client struct {
	providers map[string]Provider
	configs   map[string]ProviderConfig
	observer  Observer
	timeout   time.Duration
}

var _ Completer = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider installs p for its Name, replacing any default.
func WithProvider(p Provider) ClientOption {
	return func(c *Client) { c.providers[p.Name()] = p }
}

// WithProviderConfig sets the config used to build the named registry provider.
func WithProviderConfig(name string, cfg ProviderConfig) ClientOption {
	return func(c *Client) { c.configs[name] = cfg }
}

// WithObserver sets the call observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observer = o }
}

// WithTimeout overrides RequestTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Client with every registered provider available.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]Provider),
		configs:   make(map[string]ProviderConfig),
		timeout:   RequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, name := range AvailableProviders() {
		if _, ok := c.providers[name]; ok {
			continue
		}
		p, err := NewProvider(name, c.configs[name])
		if err == nil {
			c.providers[name] = p
		}
	}
	return c
}

// Complete sends req with apiKey and returns the completion. Failures are
// reported as *CompletionError.
func (c *Client) Complete(ctx context.Context, apiKey string, req Request) (*Completion, error) {
	p, ok := c.providers[req.Model.Provider]
	if !ok {
		return nil, &CompletionError{
			Provider: req.Model.Provider,
			Err:      fmt.Errorf("no provider for model %q", req.Model.ID),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	comp, err := p.Complete(ctx, apiKey, req)
	duration := time.Since(start)

	if c.observer != nil {
		c.observer.OnCall(ctx, CallEvent{
			Provider:   p.Name(),
			Model:      req.Model.ID,
			APIModel:   req.Model.APIModel,
			Vision:     req.ImageURL() != "",
			JSONMode:   req.JSONMode,
			Completion: comp,
			Err:        err,
			Duration:   duration,
			StartedAt:  start,
		})
	}

	if err != nil {
		return nil, err
	}
	return comp, nil
}
