package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GenerateRequest is the body of an Ollama-style /api/generate call.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// Options holds sampling parameters.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// GenerateResponse is the non-streaming reply.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaClient calls a generation endpoint with a hard per-call timeout. A
// circuit breaker stops calling a backend that keeps failing.
type OllamaClient struct {
	url     string
	model   string
	options Options
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// Option configures an OllamaClient.
type Option func(*OllamaClient)

// WithLogger sets a logger for breaker state changes and failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *OllamaClient) { c.logger = l }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *OllamaClient) { c.client = h }
}

// NewOllamaClient creates a client from the generation config.
func NewOllamaClient(cfg *config.GenerationConfig, opts ...Option) *OllamaClient {
	c := &OllamaClient{
		url:   cfg.URL,
		model: cfg.Model,
		options: Options{
			Temperature: cfg.SamplingTemperature(),
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
			NumPredict:  cfg.MaxTokens,
		},
		timeout: cfg.Timeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// A caller that gave up says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("generation circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c
}

// Generate sends prompt to the backend and returns the trimmed response text.
// All failures wrap ErrBackendUnavailable.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *OllamaClient) generate(ctx context.Context, prompt string) (answer string, err error) {
	defer func() {
		if err != nil && errors.Is(ctx.Err(), context.Canceled) {
			err = fmt.Errorf("%w: %w", ErrBackendUnavailable, context.Canceled)
		}
	}()
	opts := c.options
	body, err := json.Marshal(GenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: &opts,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrBackendUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrBackendUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrBackendUnavailable, err)
	}
	answer = strings.TrimSpace(out.Response)
	if answer == "" {
		return "", fmt.Errorf("%w: empty response", ErrBackendUnavailable)
	}
	c.logger.Debug("generation completed",
		zap.String("model", c.model), zap.Duration("took", time.Since(start)), zap.Int("answer_len", len(answer)))
	return answer, nil
}

// State reports the circuit breaker state ("closed", "half-open" or "open").
func (c *OllamaClient) State() string {
	return c.breaker.State().String()
}
