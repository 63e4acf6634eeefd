package rag

import (
	"errors"

	"github.com/hyperjump/tutorly/internal/models"
)

// Caller errors, reported before any provider is called.
var (
	ErrMissingMessage      = models.ErrMissingMessage
	ErrNoDocumentsSelected = models.ErrNoDocumentsSelected
	ErrDocumentsNotFound   = errors.New("no matching documents found")
)

// Pipeline stages that call an external provider.
const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageAnswer   = "answer"
)

// UpstreamError is a failure of the embedding, retrieval or chat provider.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return e.Stage + " failed: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from a provider, returning the failed stage.
func IsUpstream(err error) (string, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Stage, true
	}
	return "", false
}
