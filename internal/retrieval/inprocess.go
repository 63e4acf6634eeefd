package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/tutorly/internal/embedding"
	"github.com/hyperjump/tutorly/internal/models"
	"go.uber.org/zap"
)

// ChunkSource loads the stored chunks of a set of resources.
type ChunkSource interface {
	GetChunksByResourceIDs(ctx context.Context, resourceIDs []string) ([]*models.Chunk, error)
}

// OutcomeKind tags the result of scoring one stored chunk.
type OutcomeKind int

const (
	// OutcomeScored means the chunk was parsed and scored.
	OutcomeScored OutcomeKind = iota
	// OutcomeSkipped means the chunk's stored embedding was unusable.
	OutcomeSkipped
)

// Outcome is the tagged result of scoring one chunk: Chunk is set when Kind is
// OutcomeScored, Reason when Kind is OutcomeSkipped.
type Outcome struct {
	Kind   OutcomeKind
	Chunk  models.ScoredChunk
	Reason string
}

// Scorer computes the in-process relevance score of a chunk.
type Scorer struct {
	// Dimensions is the expected embedding length; 0 accepts any length equal to the query's.
	Dimensions int
	// SubstringBonus is added when the chunk text contains the query (case-insensitive).
	// Zero or negative disables it.
	SubstringBonus float64
}

// Score parses the chunk's stored embedding and scores it against the query.
func (s Scorer) Score(query string, queryVec []float32, c *models.Chunk) Outcome {
	dims := s.Dimensions
	if dims == 0 {
		dims = len(queryVec)
	}
	vec, err := embedding.DecodeVector(c.Embedding, dims)
	if err != nil {
		return Outcome{Kind: OutcomeSkipped, Reason: err.Error()}
	}
	sim := CosineSimilarity(queryVec, vec)
	score := sim
	if s.SubstringBonus > 0 && containsFold(c.Content, query) {
		score += s.SubstringBonus
	}
	return Outcome{
		Kind: OutcomeScored,
		Chunk: models.ScoredChunk{
			ChunkID:    c.ID,
			ResourceID: c.ResourceID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Similarity: sim,
			Score:      score,
		},
	}
}

func containsFold(text, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}

// InProcessRetriever loads candidate chunks from a ChunkSource and ranks them in memory.
type InProcessRetriever struct {
	source ChunkSource
	scorer Scorer
	logger *zap.Logger
}

// InProcessOption configures an InProcessRetriever.
type InProcessOption func(*InProcessRetriever)

// WithLogger sets a logger for skipped-chunk warnings.
func WithLogger(l *zap.Logger) InProcessOption {
	return func(r *InProcessRetriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewInProcessRetriever creates a retriever over source using scorer.
func NewInProcessRetriever(source ChunkSource, scorer Scorer, opts ...InProcessOption) *InProcessRetriever {
	r := &InProcessRetriever{source: source, scorer: scorer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the strategy name.
func (r *InProcessRetriever) Name() string {
	return "inprocess"
}

// Retrieve scores every candidate chunk and returns the top-k.
// Chunks whose embedding cannot be parsed are skipped and counted, never fatal.
func (r *InProcessRetriever) Retrieve(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{}
	if len(req.ResourceIDs) == 0 {
		return result, nil
	}
	chunks, err := r.source.GetChunksByResourceIDs(ctx, req.ResourceIDs)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	result.Candidates = len(chunks)
	scored := make([]models.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		out := r.scorer.Score(req.Query, req.Vector, c)
		switch out.Kind {
		case OutcomeScored:
			scored = append(scored, out.Chunk)
		case OutcomeSkipped:
			result.Skipped++
			r.logger.Warn("skipping chunk with unusable embedding",
				zap.String("chunk_id", c.ID),
				zap.String("resource_id", c.ResourceID),
				zap.String("reason", out.Reason))
		}
	}
	sortByScore(scored)
	result.Chunks = truncate(scored, req.topK())
	return result, nil
}
