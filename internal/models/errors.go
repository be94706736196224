package models

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailure means the document could not be read at all.
	ErrExtractionFailure = errors.New("could not extract text from the document")
	// ErrEmptyCorpus means no page yielded extractable text.
	ErrEmptyCorpus = errors.New("no extractable text in document")
	ErrEmptyQuery  = errors.New("query is empty")
)

// LanguageModelError wraps any failure of the generation call.
type LanguageModelError struct {
	Provider string
	Err      error
}

func (e *LanguageModelError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("language model call failed: %v", e.Err)
	}
	return fmt.Sprintf("language model call failed (%s): %v", e.Provider, e.Err)
}

func (e *LanguageModelError) Unwrap() error {
	return e.Err
}
