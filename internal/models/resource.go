// Package models defines core data structures for resources, chunks, and chat requests.
package models

import "time"

// Resource is an uploaded document owned by a user.
type Resource struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	URL       string    `json:"url" db:"url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Chunk is a contiguous slice of a resource's extracted text.
// Embedding holds the vector as stored (serialized JSON array); it is parsed at query time.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	ResourceID string    `json:"resource_id" db:"resource_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Content    string    `json:"content" db:"content"`
	Embedding  string    `json:"-" db:"embedding"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ScoredChunk is a chunk with its relevance score for a query.
type ScoredChunk struct {
	ChunkID    string  `json:"chunk_id"`
	ResourceID string  `json:"resource_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
}
