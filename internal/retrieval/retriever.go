// Package retrieval ranks stored chunks against a query embedding.
//
// Two strategies share the Retriever interface: InProcessRetriever scores chunks in the
// service with cosine similarity plus an optional lexical bonus, and DelegatedRetriever asks a
// Postgres similarity function to rank them.
package retrieval

import (
	"context"

	"github.com/hyperjump/tutorly/internal/models"
)

// DefaultTopK is the number of chunks kept when a request does not set K.
const DefaultTopK = 5

// Request is a single retrieval call.
type Request struct {
	// Query is the raw question text, used for the lexical bonus.
	Query string
	// Vector is the query embedding.
	Vector []float32
	// ResourceIDs restricts candidates to these resources.
	ResourceIDs []string
	// K is the number of chunks to return; DefaultTopK when <= 0.
	K int
}

func (r *Request) topK() int {
	if r.K <= 0 {
		return DefaultTopK
	}
	return r.K
}

// Result is the ranked output of a retrieval.
type Result struct {
	// Chunks are ordered by descending score.
	Chunks []models.ScoredChunk
	// Candidates is the number of chunks considered.
	Candidates int
	// Skipped counts candidates dropped because their stored embedding was unusable.
	Skipped int
}

// Retriever selects the top-k chunks for a query vector.
// An empty resource set or candidate pool yields an empty Result, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, req *Request) (*Result, error)
	Name() string
}
