package models

import "strings"

// QueryRequest is the body of a question request.
type QueryRequest struct {
	Question string `json:"question"`
}

// Normalize trims surrounding whitespace from the question.
func (q *QueryRequest) Normalize() {
	q.Question = strings.TrimSpace(q.Question)
}

// UploadListQuery pages through the upload ledger.
type UploadListQuery struct {
	Limit  int
	Offset int
}

// Validate clamps paging values to sane bounds.
func (q *UploadListQuery) Validate() {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}
