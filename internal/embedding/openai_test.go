package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeEmbeddingsServer answers /embeddings with vectors [len(text), index, 1].
func fakeEmbeddingsServer(t *testing.T, status int) (*httptest.Server, *int) {
	t.Helper()
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
			return
		}
		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		data := make([]map[string]interface{}, len(body.Input))
		for i, in := range body.Input {
			data[i] = map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(in)), float64(i), 1},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  body.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv, requests := fakeEmbeddingsServer(t, http.StatusOK)
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey: "sk-test", BaseURL: srv.URL, Model: "text-embedding-ada-002", Dimensions: 3, BatchSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vector %d = %v, want first component %v", i, vecs[i], want)
		}
	}
	if *requests != 2 {
		t.Errorf("expected 2 batched requests, got %d", *requests)
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv, _ := fakeEmbeddingsServer(t, http.StatusOK)
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "text-embedding-ada-002", Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(context.Background(), "warranty")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[0] != 8 {
		t.Errorf("got %v", v)
	}
}

func TestOpenAIEmbedder_dimensionMismatch(t *testing.T) {
	srv, _ := fakeEmbeddingsServer(t, http.StatusOK)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "text-embedding-ada-002", Dimensions: 1536})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedder_upstreamErrorNotRetried(t *testing.T) {
	srv, requests := fakeEmbeddingsServer(t, http.StatusUnauthorized)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "text-embedding-ada-002", Dimensions: 3})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error from upstream failure")
	}
	if *requests != 1 {
		t.Errorf("expected a single attempt, got %d", *requests)
	}
}

func TestNewOpenAIEmbedder_validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  OpenAIConfig
	}{
		{"no key", OpenAIConfig{Model: "m", Dimensions: 3}},
		{"no model", OpenAIConfig{APIKey: "k", Dimensions: 3}},
		{"no dims", OpenAIConfig{APIKey: "k", Model: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOpenAIEmbedder(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
