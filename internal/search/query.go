package search

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// InvalidQueryError reports a question rejected before retrieval.
type InvalidQueryError struct {
	Message string
}

func (e *InvalidQueryError) Error() string {
	return e.Message
}

var (
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = &InvalidQueryError{Message: "No question provided"}
	// ErrQuestionTooLong is returned when a question exceeds the length limit.
	ErrQuestionTooLong = &InvalidQueryError{Message: "Question too long"}
)

// ValidateQuestion trims question and checks it against maxLen characters.
func ValidateQuestion(question string, maxLen int) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", ErrEmptyQuestion
	}
	if maxLen > 0 && utf8.RuneCountInString(q) > maxLen {
		return "", fmt.Errorf("%w (max %d characters)", ErrQuestionTooLong, maxLen)
	}
	return q, nil
}
