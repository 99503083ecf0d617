package llm

import (
	"context"
	"time"

	"github.com/jmylchreest/enrichgpt/internal/logger"
)

// Observer receives notifications about completion calls.
//
// The observer is called after every call, whether successful or failed.
// Implementations must not block; they run on the enrichment path.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent contains all information about one completion call.
type CallEvent struct {
	// Provider name (e.g., "openai", "anthropic")
	Provider string

	// Model is the configuration identifier of the requested model.
	Model string

	// APIModel is the model name sent on the wire.
	APIModel string

	// Vision is true when the request carried an image part.
	Vision bool

	// JSONMode is true when a JSON object response was requested.
	JSONMode bool

	// Completion is nil if the call failed.
	Completion *Completion

	// Err is set if the call failed.
	Err error

	Duration  time.Duration
	StartedAt time.Time
}

// ObserverFunc is a convenience type for using a function as an Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches every event to each of its observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnCall dispatches the event to all registered observers.
func (m *MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m.observers {
		obs.OnCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs Observer) {
	m.observers = append(m.observers, obs)
}

// LoggingObserver writes one structured log line per call. Prompts and
// keys are never logged.
type LoggingObserver struct{}

// OnCall implements Observer.
func (LoggingObserver) OnCall(ctx context.Context, event CallEvent) {
	args := []any{
		"provider", event.Provider,
		"model", event.Model,
		"vision", event.Vision,
		"json_mode", event.JSONMode,
		"duration", event.Duration,
	}
	if event.Err != nil {
		logger.WarnContext(ctx, "completion failed", append(args, "error", event.Err)...)
		return
	}
	if event.Completion != nil {
		args = append(args,
			"input_tokens", event.Completion.Usage.InputTokens,
			"output_tokens", event.Completion.Usage.OutputTokens,
			"finish_reason", event.Completion.FinishReason,
		)
	}
	logger.DebugContext(ctx, "completion", args...)
}
