// Package rag answers questions over a user's selected documents: embed the question,
// retrieve the most similar chunks, and ask the chat model with those chunks as context.
package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/tutorly/internal/answer"
	"github.com/hyperjump/tutorly/internal/embedding"
	"github.com/hyperjump/tutorly/internal/models"
	"github.com/hyperjump/tutorly/internal/retrieval"
	"go.uber.org/zap"
)

// ResourceFinder resolves document names to the caller's resources.
type ResourceFinder interface {
	FindResourcesByNames(ctx context.Context, userID string, names []string) ([]*models.Resource, error)
}

// Pipeline runs the question-answering flow. Stages run sequentially per request.
type Pipeline struct {
	resources ResourceFinder
	embedder  embedding.Embedder
	retriever retrieval.Retriever
	answerer  answer.Answerer
	topK      int
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopK sets how many chunks are used as context.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithLogger sets a logger for per-request events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline from its components.
func NewPipeline(resources ResourceFinder, embedder embedding.Embedder, retriever retrieval.Retriever, answerer answer.Answerer, opts ...Option) *Pipeline {
	p := &Pipeline{
		resources: resources,
		embedder:  embedder,
		retriever: retriever,
		answerer:  answerer,
		topK:      retrieval.DefaultTopK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Strategy returns the name of the retrieval strategy in use.
func (p *Pipeline) Strategy() string {
	return p.retriever.Name()
}

// Ask answers req for userID. Validation and resolution errors are returned before any
// provider is called. A retrieval that finds nothing is not an error: the answerer is asked
// without context and the response reports HasContext false.
func (p *Pipeline) Ask(ctx context.Context, userID string, req *models.ChatRequest) (*models.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	resources, err := p.resources.FindResourcesByNames(ctx, userID, req.SelectedDocs)
	if err != nil {
		return nil, fmt.Errorf("resolve documents: %w", err)
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrDocumentsNotFound, req.SelectedDocs)
	}
	ids := make([]string, len(resources))
	for i, r := range resources {
		ids[i] = r.ID
	}

	vec, err := p.embedder.Embed(ctx, req.Message)
	if err != nil {
		return nil, &UpstreamError{Stage: StageEmbed, Err: err}
	}

	result, err := p.retriever.Retrieve(ctx, &retrieval.Request{
		Query:       req.Message,
		Vector:      vec,
		ResourceIDs: ids,
		K:           p.topK,
	})
	if err != nil {
		return nil, &UpstreamError{Stage: StageRetrieve, Err: err}
	}

	contextText := answer.BuildContext(result.Chunks)
	reply, err := p.answerer.Answer(ctx, req.Message, contextText)
	if err != nil {
		return nil, &UpstreamError{Stage: StageAnswer, Err: err}
	}

	matchCount := len(result.Chunks)
	p.logger.Info("chat answered",
		zap.String("user_id", userID),
		zap.Int("documents", len(ids)),
		zap.Int("candidates", result.Candidates),
		zap.Int("skipped", result.Skipped),
		zap.Int("match_count", matchCount),
		zap.String("strategy", p.retriever.Name()),
		zap.Duration("took", time.Since(start)))

	return &models.ChatResponse{
		Response:   reply,
		HasContext: matchCount > 0 && contextText != "",
		MatchCount: matchCount,
	}, nil
}
