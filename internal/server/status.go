package server

import (
	"context"
	"fmt"

	"github.com/hyperjump/tutorly/internal/config"
	"github.com/hyperjump/tutorly/internal/storage"
)

// Status reports store counts, the effective retrieval configuration and disk usage.
// It backs GET /api/v1/status and the local status command. Counts cover only userID's
// resources; an empty userID counts the whole store.
func Status(ctx context.Context, store storage.Storage, cfg *config.Config, strategy, userID string) (map[string]interface{}, error) {
	resourceCount, chunkCount, err := countFor(ctx, store, userID)
	if err != nil {
		return nil, err
	}
	resp := map[string]interface{}{
		"resources": resourceCount,
		"chunks":    chunkCount,
		"config": map[string]interface{}{
			"retrieval_strategy":   strategy,
			"top_k":                cfg.Retrieval.TopK,
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_model":      cfg.Embedding.Model,
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"chat_model":           cfg.Chat.Model,
			"chunk_size":           cfg.Ingest.ChunkSize,
			"chunk_overlap":        cfg.Ingest.ChunkOverlapOrDefault(),
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.UploadDir); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	return resp, nil
}

func countFor(ctx context.Context, store storage.Storage, userID string) (resources, chunks int64, err error) {
	if userID == "" {
		if resources, err = store.CountResources(ctx); err != nil {
			return 0, 0, fmt.Errorf("count resources: %w", err)
		}
		if chunks, err = store.CountChunks(ctx); err != nil {
			return 0, 0, fmt.Errorf("count chunks: %w", err)
		}
		return resources, chunks, nil
	}
	if resources, err = store.CountResourcesByUser(ctx, userID); err != nil {
		return 0, 0, fmt.Errorf("count resources: %w", err)
	}
	if chunks, err = store.CountChunksByUser(ctx, userID); err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	return resources, chunks, nil
}
