// Package llm wraps the text-generation backends used for selection,
// summarization and translation. Callers never trust the reply to be JSON.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/ratelimit"
)

// ErrBudgetExhausted is returned when the daily request budget is used up.
var ErrBudgetExhausted = errors.New("llm request budget exhausted")

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	JSON        bool
	Temperature float64
	MaxTokens   int
}

// Backend produces a completion for a request.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Backend.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Name() string { return "func" }

func (f Func) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Budgeted charges every call against a request limiter.
type Budgeted struct {
	Backend
	limiter *ratelimit.Limiter
}

func WithBudget(b Backend, limiter *ratelimit.Limiter) Backend {
	if limiter == nil {
		return b
	}
	return &Budgeted{Backend: b, limiter: limiter}
}

func (b *Budgeted) Complete(ctx context.Context, req Request) (string, error) {
	if err := b.limiter.Use(b.Backend.Name()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBudgetExhausted, err)
	}
	return b.Backend.Complete(ctx, req)
}

// New builds the configured backend. local_dummy yields a nil Backend and no error.
func New(ctx context.Context, cfg config.SummarizerConfig, limiter *ratelimit.Limiter) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case "local_dummy", "":
		return nil, nil
	case "openai_compatible":
		oc := cfg.OpenAICompatible
		b = NewOpenAI(config.Secret(oc.APIKeyEnv), oc.BaseURL, oc.Model, oc.Temperature, oc.MaxTokens)
	case "gemini":
		gc := cfg.Gemini
		b, err = NewGemini(ctx, config.Secret(gc.APIKeyEnv), gc.Model, gc.Temperature, gc.MaxTokens)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown summarizer backend %q", cfg.Backend)
	}
	return WithBudget(b, limiter), nil
}

// Close releases backend resources when the backend holds any.
func Close(b Backend) {
	if b == nil {
		return
	}
	if bb, ok := b.(*Budgeted); ok {
		b = bb.Backend
	}
	if c, ok := b.(interface{ Close() }); ok {
		c.Close()
	}
}
