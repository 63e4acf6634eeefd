package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hyperjump/tutorly/internal/extract"
	"github.com/hyperjump/tutorly/internal/ingest"
	"github.com/hyperjump/tutorly/internal/rag"
	"github.com/hyperjump/tutorly/internal/storage"
)

// statusForError maps a pipeline, ingestion or storage error to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, rag.ErrMissingMessage), errors.Is(err, rag.ErrNoDocumentsSelected):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrDocumentsNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ingest.ErrEmbedding):
		return http.StatusBadGateway
	}
	if _, ok := rag.IsUpstream(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
