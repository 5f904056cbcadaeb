// Package generation talks to the language-model backend that turns a prompt
// into an answer.
package generation

import (
	"context"
	"errors"
)

// ErrBackendUnavailable wraps every failure to obtain a usable answer:
// transport errors, timeouts, non-success statuses, empty output and an open
// circuit breaker.
var ErrBackendUnavailable = errors.New("generation backend unavailable")

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
