// Package answer turns retrieved chunks and a question into a natural-language answer.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/tutorly/internal/models"
)

// Answerer produces an answer constrained to the supplied context.
// An empty contextText means retrieval found nothing; implementations must still answer.
type Answerer interface {
	Answer(ctx context.Context, question, contextText string) (string, error)
}

const contextSeparator = "\n\n"

// BuildContext joins chunk texts in ranked order, separated by a blank line.
// Chunks with blank content are left out.
func BuildContext(chunks []models.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if text := strings.TrimSpace(c.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, contextSeparator)
}

const groundedSystemPrompt = `You answer questions about the user's documents.
Use only the information in the context below. If the context does not contain the answer, say that the documents do not cover it instead of guessing.
Do not mention the context, excerpts, chunks or their numbering in your answer.

Context:
%s`

const noContextSystemPrompt = `You answer questions about the user's documents.
No relevant information was found in the selected documents for this question.
Tell the user you don't have information about that in their documents and suggest they check the document selection or rephrase. Do not answer from general knowledge.`

// SystemPrompt returns the system instruction for the given context.
func SystemPrompt(contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return noContextSystemPrompt
	}
	return fmt.Sprintf(groundedSystemPrompt, contextText)
}
