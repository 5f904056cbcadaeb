// Package search answers questions from indexed chunks: it retrieves the best
// matches above a score threshold and asks the generation backend, falling
// back to quoting the context when generation fails.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/embedding"
	"github.com/hyperjump/ragdoc/internal/generation"
	"github.com/hyperjump/ragdoc/internal/models"
	"go.uber.org/zap"
)

// ChunkSearcher finds chunks similar to a query vector.
type ChunkSearcher interface {
	Search(ctx context.Context, query []float32, k int, minScore float32) ([]models.ScoredChunk, error)
}

// Engine runs the question-answering flow.
type Engine struct {
	store      ChunkSearcher
	embedder   embedding.Embedder
	generator  generation.Generator
	config     *config.RetrievalConfig
	genTimeout time.Duration
	logger     *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for retrieval and fallback events.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithGenerationTimeout bounds each generation call.
func WithGenerationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.genTimeout = d }
}

// NewEngine creates an engine. generator may be nil, in which case every
// answer with context is the fallback answer.
func NewEngine(
	store ChunkSearcher,
	embedder embedding.Embedder,
	generator generation.Generator,
	cfg *config.RetrievalConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		store:     store,
		embedder:  embedder,
		generator: generator,
		config:    cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer validates question, retrieves context and produces an answer.
// Validation failures are *InvalidQueryError; generation failures never
// surface as errors.
func (e *Engine) Answer(ctx context.Context, question string) (*models.AnswerResult, error) {
	start := time.Now()
	q, err := ValidateQuestion(question, e.config.MaxQuestionLength)
	if err != nil {
		return nil, err
	}

	vec, err := e.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	hits, err := e.store.Search(ctx, vec, e.config.TopK, float32(e.config.MinScore()))
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	if len(hits) == 0 {
		e.logger.Debug("no chunk above threshold",
			zap.Float64("threshold", e.config.MinScore()), zap.Int("question_len", len(q)))
		return &models.AnswerResult{
			Answer:        NoContextAnswer,
			RetrievedDocs: []string{},
			ContextFound:  false,
			Outcome:       models.OutcomeNoContext,
			QueryTime:     time.Since(start).Milliseconds(),
		}, nil
	}

	contextText := BuildContext(hits, e.config.ContextChunks)
	answer, outcome := e.generate(ctx, BuildPrompt(contextText, q), contextText)

	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Text
	}
	return &models.AnswerResult{
		Answer:          answer,
		RetrievedDocs:   docs,
		ContextFound:    true,
		RelevanceScores: FormatScores(hits),
		Sources:         Sources(hits),
		Outcome:         outcome,
		QueryTime:       time.Since(start).Milliseconds(),
	}, nil
}

func (e *Engine) generate(ctx context.Context, prompt, contextText string) (string, models.Outcome) {
	if e.generator == nil {
		return FallbackAnswer(contextText, e.fallbackChars()), models.OutcomeFallback
	}
	if e.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.genTimeout)
		defer cancel()
	}
	answer, err := e.generator.Generate(ctx, prompt)
	if err == nil {
		answer = strings.TrimSpace(answer)
	}
	if err != nil || answer == "" {
		e.logger.Warn("generation failed, using fallback answer", zap.Error(err))
		return FallbackAnswer(contextText, e.fallbackChars()), models.OutcomeFallback
	}
	return answer, models.OutcomeGenerated
}

func (e *Engine) fallbackChars() int {
	if e.config.FallbackChars > 0 {
		return e.config.FallbackChars
	}
	return 300
}
