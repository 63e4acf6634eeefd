package models

import (
	"errors"
	"strings"
)

// Request validation errors.
var (
	ErrMissingMessage      = errors.New("message is required")
	ErrNoDocumentsSelected = errors.New("no documents selected")
)

// ChatRequest is a question over a selection of the caller's documents.
type ChatRequest struct {
	Message      string   `json:"message"`
	SelectedDocs []string `json:"selectedDocs"`
}

// ChatResponse is the generated answer plus retrieval bookkeeping.
type ChatResponse struct {
	Response   string `json:"response"`
	HasContext bool   `json:"hasContext"`
	MatchCount int    `json:"matchCount"`
}

// Normalize trims the message and drops blank or duplicate document names, keeping order.
func (r *ChatRequest) Normalize() {
	r.Message = strings.TrimSpace(r.Message)
	seen := make(map[string]bool, len(r.SelectedDocs))
	docs := r.SelectedDocs[:0]
	for _, d := range r.SelectedDocs {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		docs = append(docs, d)
	}
	r.SelectedDocs = docs
}

// Validate normalizes the request and reports the first missing field.
func (r *ChatRequest) Validate() error {
	r.Normalize()
	if r.Message == "" {
		return ErrMissingMessage
	}
	if len(r.SelectedDocs) == 0 {
		return ErrNoDocumentsSelected
	}
	return nil
}
