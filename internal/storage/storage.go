// Package storage defines the persistence interface for resources and chunks.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/tutorly/internal/models"
)

// ErrNotFound is returned when a resource or chunk does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines resource and chunk persistence operations.
type Storage interface {
	// Resource operations
	CreateResource(ctx context.Context, res *models.Resource, chunks []*models.Chunk) error
	GetResource(ctx context.Context, id string) (*models.Resource, error)
	ListResources(ctx context.Context, userID string) ([]*models.Resource, error)
	FindResourcesByNames(ctx context.Context, userID string, names []string) ([]*models.Resource, error)
	DeleteResource(ctx context.Context, id string) error

	// Chunk operations
	GetChunksByResourceIDs(ctx context.Context, resourceIDs []string) ([]*models.Chunk, error)
	CountChunksByResourceID(ctx context.Context, resourceID string) (int64, error)

	// Stats
	CountResources(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	CountResourcesByUser(ctx context.Context, userID string) (int64, error)
	CountChunksByUser(ctx context.Context, userID string) (int64, error)

	Close() error
}
