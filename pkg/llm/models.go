package llm

import (
	"errors"
	"fmt"
)

// Kind distinguishes request shapes.
type Kind int

const (
	// KindText models take a plain text user message.
	KindText Kind = iota
	// KindVision models take a text part plus an image part.
	KindVision
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVision:
		return "vision"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Model is a supported model choice.
type Model struct {
	// ID is the identifier used in enrichment configuration.
	ID string `json:"id" yaml:"id"`
	// Label is the human-readable choice label.
	Label string `json:"label" yaml:"label"`
	// APIModel is the model name sent on the wire.
	APIModel string `json:"api_model" yaml:"api_model"`
	// Kind selects the request shape.
	Kind Kind `json:"-" yaml:"-"`
	// Provider names the Provider that serves this model.
	Provider string `json:"provider" yaml:"provider"`
	// JSONMode reports whether the provider can constrain output to a JSON object.
	JSONMode bool `json:"json_mode" yaml:"json_mode"`
}

// IsVision reports whether m takes image input.
func (m Model) IsVision() bool { return m.Kind == KindVision }

// ErrUnknownModel is returned by LookupModel for unsupported identifiers.
var ErrUnknownModel = errors.New("unknown model")

// DefaultModel is the model preselected in the configuration form.
const DefaultModel = "gpt-3.5-turbo"

var catalog = []Model{
	{ID: "gpt-3.5-turbo", Label: "gpt-3.5-turbo", APIModel: "gpt-3.5-turbo", Kind: KindText, Provider: "openai", JSONMode: true},
	{ID: "gpt-4-turbo", Label: "gpt-4-turbo", APIModel: "gpt-4-turbo", Kind: KindText, Provider: "openai", JSONMode: true},
	{ID: "gpt-4o", Label: "gpt-4o", APIModel: "gpt-4o", Kind: KindText, Provider: "openai", JSONMode: true},
	{ID: "gpt-4o-mini", Label: "gpt-4o-mini", APIModel: "gpt-4o-mini", Kind: KindText, Provider: "openai", JSONMode: true},
	{ID: "gpt-4-vision", Label: "gpt-4-turbo vision", APIModel: "gpt-4-turbo", Kind: KindVision, Provider: "openai"},
	{ID: "gpt-4o-vision", Label: "gpt-4o vision", APIModel: "gpt-4o", Kind: KindVision, Provider: "openai"},
	{ID: "claude-3-5-haiku", Label: "Claude 3.5 Haiku", APIModel: "claude-3-5-haiku-20241022", Kind: KindText, Provider: "anthropic"},
	{ID: "claude-sonnet-4", Label: "Claude Sonnet 4", APIModel: "claude-sonnet-4-20250514", Kind: KindText, Provider: "anthropic"},
	{ID: "claude-sonnet-4-vision", Label: "Claude Sonnet 4 vision", APIModel: "claude-sonnet-4-20250514", Kind: KindVision, Provider: "anthropic"},
}

// Models returns all supported models in form order.
func Models() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel resolves a configuration identifier to a Model.
func LookupModel(id string) (Model, error) {
	for _, m := range catalog {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
}

// IsSupportedModel reports whether id names a catalog model.
func IsSupportedModel(id string) bool {
	_, err := LookupModel(id)
	return err == nil
}
