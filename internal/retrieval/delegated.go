package retrieval

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hyperjump/tutorly/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// Querier is the subset of *pgxpool.Pool used by DelegatedRetriever.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// DelegatedRetriever ranks chunks with a Postgres similarity function of the form
// fn(query_embedding vector, match_threshold float, match_count int, resource_ids uuid[]).
// The substring bonus is not applied; the function's similarity is the score.
type DelegatedRetriever struct {
	db        Querier
	query     string
	threshold float64
	logger    *zap.Logger
}

// NewDelegatedRetriever creates a retriever that calls function on db.
func NewDelegatedRetriever(db Querier, function string, threshold float64, logger *zap.Logger) (*DelegatedRetriever, error) {
	if db == nil {
		return nil, fmt.Errorf("delegated retriever: nil database")
	}
	if !identifierRe.MatchString(function) {
		return nil, fmt.Errorf("delegated retriever: invalid function name %q", function)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DelegatedRetriever{
		db:        db,
		query:     fmt.Sprintf("SELECT id, resource_id, content, similarity FROM %s($1, $2, $3, $4)", function),
		threshold: threshold,
		logger:    logger,
	}, nil
}

// Name returns the strategy name.
func (r *DelegatedRetriever) Name() string {
	return "delegated"
}

// Retrieve calls the similarity function and returns its rows, at most K of them.
func (r *DelegatedRetriever) Retrieve(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{}
	if len(req.ResourceIDs) == 0 {
		return result, nil
	}
	k := req.topK()
	rows, err := r.db.Query(ctx, r.query, pgvector.NewVector(req.Vector), r.threshold, k, req.ResourceIDs)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var chunks []models.ScoredChunk
	for rows.Next() {
		var c models.ScoredChunk
		if err := rows.Scan(&c.ChunkID, &c.ResourceID, &c.Content, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		c.Score = c.Similarity
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity rows: %w", err)
	}
	r.logger.Debug("delegated retrieval", zap.Int("rows", len(chunks)), zap.Int("k", k))

	sortByScore(chunks)
	result.Candidates = len(chunks)
	result.Chunks = truncate(chunks, k)
	return result, nil
}
