package embedding

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeVector serializes a vector the way it is stored alongside a chunk: a JSON array,
// which is also the pgvector text format.
func EncodeVector(v []float32) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode vector: %w", err)
	}
	return string(b), nil
}

// DecodeVector parses a stored vector. When dims > 0 the vector must have exactly dims values.
func DecodeVector(s string, dims int) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty vector")
	}
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	if dims > 0 && len(v) != dims {
		return nil, fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), dims)
	}
	return v, nil
}
