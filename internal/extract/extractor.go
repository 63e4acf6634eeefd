// Package extract turns uploaded documents into plain text for chunking.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for files whose extension is not accepted.
var ErrUnsupportedType = errors.New("unsupported file type")

// Extractor extracts plain text from uploaded documents.
type Extractor struct {
	allowed map[string]bool
}

// NewExtractor returns an Extractor accepting the given extensions (with leading dot).
// An empty list accepts every extension; unknown formats are read as plain text.
func NewExtractor(extensions []string) *Extractor {
	e := &Extractor{allowed: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.allowed[ext] = true
	}
	return e
}

// Supports reports whether a file named name would be accepted.
func (e *Extractor) Supports(name string) bool {
	if len(e.allowed) == 0 {
		return true
	}
	return e.allowed[strings.ToLower(filepath.Ext(name))]
}

// ExtractFile reads the file at path and returns its text.
func (e *Extractor) ExtractFile(path string) (string, error) {
	if !e.Supports(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.Extract(filepath.Base(path), content)
}

// Extract returns the text of content, choosing the format from name's extension.
// A document without text yields "" and no error.
func (e *Extractor) Extract(name string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !e.Supports(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractDOCX(content)
	case ".xlsx":
		text, err = extractXLSX(content)
	default:
		text, err = extractPlain(content)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	return strings.TrimSpace(text), nil
}
