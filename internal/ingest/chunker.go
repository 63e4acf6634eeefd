// Package ingest turns uploaded documents into embedded, stored chunks.
package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/tutorly/internal/models"
)

// Chunker splits text into fixed-size overlapping windows counted in runes.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. size must be positive and overlap in [0, size).
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the trimmed, non-empty windows of text. Each window starts size-overlap runes
// after the previous one; the last window ends at the end of text.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		if window := strings.TrimSpace(string(runes[start:end])); window != "" {
			out = append(out, window)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// Chunk splits text into chunks of resourceID with fresh IDs and consecutive indexes.
func (c *Chunker) Chunk(resourceID, text string) []*models.Chunk {
	windows := c.Split(text)
	if len(windows) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = &models.Chunk{
			ID:         uuid.NewString(),
			ResourceID: resourceID,
			ChunkIndex: i,
			Content:    w,
		}
	}
	return chunks
}
