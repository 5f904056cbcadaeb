package models

// ScoredChunk is a single retrieval hit.
type ScoredChunk struct {
	ID       int64         `json:"id"`
	Text     string        `json:"text"`
	Score    float32       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Outcome names the terminal state of a question.
type Outcome string

const (
	OutcomeNoContext Outcome = "no_context"
	OutcomeGenerated Outcome = "generated"
	OutcomeFallback  Outcome = "fallback"
)

// AnswerResult is the response to a question.
type AnswerResult struct {
	Answer          string   `json:"answer"`
	RetrievedDocs   []string `json:"retrieved_docs"`
	ContextFound    bool     `json:"context_found"`
	RelevanceScores []string `json:"relevance_scores,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	Outcome         Outcome  `json:"outcome"`
	QueryTime       int64    `json:"query_time_ms"`
}

// KeywordHit is a chunk matched by the full-text index.
type KeywordHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
