// Package estimate counts prompt tokens before a run.
package estimate

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jmylchreest/enrichgpt/pkg/llm"
)

// Counter counts tokens of text for a model.
type Counter interface {
	Count(model, text string) (int, error)
}

// FallbackEncoding is used for models tiktoken does not know.
const FallbackEncoding = "cl100k_base"

// TiktokenCounter counts with OpenAI's BPE encodings. Encodings are loaded
// lazily and cached per model.
type TiktokenCounter struct {
	mu    sync.Mutex
	cache map[string]*tiktoken.Tiktoken
}

var _ Counter = (*TiktokenCounter)(nil)

// NewTiktokenCounter creates a TiktokenCounter.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{cache: make(map[string]*tiktoken.Tiktoken)}
}

// Count implements Counter.
func (c *TiktokenCounter) Count(model, text string) (int, error) {
	enc, err := c.encoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (c *TiktokenCounter) encoding(model string) (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.cache[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load encoding for %s: %w", model, err)
		}
	}
	c.cache[model] = enc
	return enc, nil
}

// Estimate returns the token count of the template, system prompt and
// filter query string concatenated. Catalog identifiers are mapped to the
// model name sent on the wire.
func Estimate(counter Counter, tmpl, system, filter, model string) (int, error) {
	if m, err := llm.LookupModel(model); err == nil {
		model = m.APIModel
	}
	n, err := counter.Count(model, tmpl+system+filter)
	if err != nil {
		return 0, fmt.Errorf("estimate tokens: %w", err)
	}
	return n, nil
}
