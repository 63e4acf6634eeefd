// Package cli formats command output for tutorly.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/tutorly/internal/models"
	"github.com/hyperjump/tutorly/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat. Unknown values are an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// ResourceSummary is one row of a resource listing.
type ResourceSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Chunks    int64     `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestSummary reports one ingested file.
type IngestSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
}

// WriteAnswer writes a chat response to w in the given format.
func WriteAnswer(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s\n", resp.Response)
	if resp.HasContext {
		fmt.Fprintf(w, "\n(%d matching chunks)\n", resp.MatchCount)
	} else {
		fmt.Fprintln(w, "\n(no matching content in the selected documents)")
	}
	return nil
}

// WriteResources writes a resource listing to w in the given format.
func WriteResources(w io.Writer, resources []ResourceSummary, format OutputFormat) error {
	if format == OutputJSON {
		if resources == nil {
			resources = []ResourceSummary{}
		}
		return writeJSON(w, map[string]interface{}{"resources": resources})
	}
	if len(resources) == 0 {
		fmt.Fprintln(w, "No resources.")
		return nil
	}
	for _, r := range resources {
		fmt.Fprintf(w, "%s  %-40s %4d chunks  %s\n",
			r.ID, utils.Truncate(r.Name, 40), r.Chunks, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// WriteIngest writes the outcome of an ingest command to w in the given format.
func WriteIngest(w io.Writer, ingested []IngestSummary, format OutputFormat) error {
	if format == OutputJSON {
		if ingested == nil {
			ingested = []IngestSummary{}
		}
		return writeJSON(w, map[string]interface{}{"ingested": ingested})
	}
	for _, r := range ingested {
		fmt.Fprintf(w, "Ingested %s (%d chunks) as %s\n", r.Name, r.Chunks, r.ID)
	}
	fmt.Fprintf(w, "%d file(s) ingested\n", len(ingested))
	return nil
}

// WriteStatus writes a status map to w. Text output is indented JSON as well.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	return writeJSON(w, status)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
