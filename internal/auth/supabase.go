package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseAuthenticator validates access tokens against a Supabase project's auth API.
type SupabaseAuthenticator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSupabaseAuthenticator creates an authenticator for the project at baseURL.
// client may be nil, in which case a client with a 10s timeout is used.
func NewSupabaseAuthenticator(baseURL, apiKey string, client *http.Client) (*SupabaseAuthenticator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase auth: url is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase auth: api key is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SupabaseAuthenticator{baseURL: baseURL, apiKey: apiKey, client: client}, nil
}

// Authenticate fetches the user owning token. Rejected tokens yield ErrUnauthorized.
func (a *SupabaseAuthenticator) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("apikey", a.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("auth request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode auth user: %w", err)
	}
	if u.ID == "" {
		return nil, ErrUnauthorized
	}
	return &u, nil
}
