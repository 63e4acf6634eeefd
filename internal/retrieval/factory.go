package retrieval

import (
	"fmt"

	"github.com/hyperjump/tutorly/internal/config"
	"go.uber.org/zap"
)

// NewRetriever builds the retriever selected by cfg.Strategy. The delegated strategy queries db,
// which the caller opens and closes; db may be nil for the in-process strategy.
func NewRetriever(cfg config.RetrievalConfig, source ChunkSource, db Querier, dims int, logger *zap.Logger) (Retriever, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Strategy {
	case config.StrategyInProcess, "":
		bonus := cfg.SubstringBonus
		if bonus < 0 {
			bonus = 0
		}
		return NewInProcessRetriever(source, Scorer{Dimensions: dims, SubstringBonus: bonus}, WithLogger(logger)), nil
	case config.StrategyDelegated:
		if db == nil {
			return nil, fmt.Errorf("delegated retrieval: no database connection")
		}
		r, err := NewDelegatedRetriever(db, cfg.Function, cfg.MatchThreshold, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown retrieval strategy: %s", cfg.Strategy)
	}
}
