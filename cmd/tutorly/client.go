package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/tutorly/internal/cli"
	"github.com/hyperjump/tutorly/internal/models"
)

// apiClient calls a running tutorly server on behalf of one bearer token.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Chat posts a question to /api/v1/chat.
func (c *apiClient) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var resp models.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", "application/json", bytes.NewReader(body), http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload sends a local file as a multipart upload to /api/v1/resources.
func (c *apiClient) Upload(ctx context.Context, path string) (*cli.IngestSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var out cli.IngestSummary
	if err := c.do(ctx, http.MethodPost, "/api/v1/resources", mw.FormDataContentType(), &buf, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resources lists the caller's documents.
func (c *apiClient) Resources(ctx context.Context) ([]cli.ResourceSummary, error) {
	var out struct {
		Resources []cli.ResourceSummary `json:"resources"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/resources", "", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

// Delete removes one of the caller's documents.
func (c *apiClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/resources/"+url.PathEscape(id), "", nil, http.StatusOK, nil)
}

// Status fetches /api/v1/status.
func (c *apiClient) Status(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", "", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader, want int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError turns an {"error": "..."} body into an error carrying the status code.
func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}
