package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tutorly/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_ResourceCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	res := &models.Resource{ID: "r1", UserID: "u1", Name: "manual.pdf", URL: "file:///tmp/manual.pdf"}
	chunks := []*models.Chunk{
		{ID: "c1", ChunkIndex: 0, Content: "first", Embedding: "[1,0]"},
		{ID: "c2", ChunkIndex: 1, Content: "second", Embedding: "[0,1]"},
	}
	if err := store.CreateResource(ctx, res, chunks); err != nil {
		t.Fatal(err)
	}
	if res.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if chunks[0].ResourceID != "r1" {
		t.Errorf("chunk resource id = %q", chunks[0].ResourceID)
	}

	got, err := store.GetResource(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "manual.pdf" || got.UserID != "u1" || got.URL != res.URL {
		t.Errorf("got %+v", got)
	}

	list, err := store.ListResources(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 resource, got %d", len(list))
	}
	if other, _ := store.ListResources(ctx, "u2"); len(other) != 0 {
		t.Errorf("other user should see nothing, got %d", len(other))
	}

	n, err := store.CountChunksByResourceID(ctx, "r1")
	if err != nil || n != 2 {
		t.Errorf("CountChunksByResourceID: %d, %v", n, err)
	}

	if err := store.DeleteResource(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	_, err = store.GetResource(ctx, "r1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if n, _ := store.CountChunks(ctx); n != 0 {
		t.Errorf("expected chunks removed with resource, got %d", n)
	}
}

func TestSQLiteStorage_FindResourcesByNames(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, r := range []*models.Resource{
		{ID: "r1", UserID: "u1", Name: "a.pdf"},
		{ID: "r2", UserID: "u1", Name: "b.pdf"},
		{ID: "r3", UserID: "u2", Name: "a.pdf"},
	} {
		if err := store.CreateResource(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.FindResourcesByNames(ctx, "u1", []string{"a.pdf", "missing.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("expected only u1's a.pdf, got %+v", got)
	}

	got, err = store.FindResourcesByNames(ctx, "u1", nil)
	if err != nil || len(got) != 0 {
		t.Errorf("empty names: %v, %v", got, err)
	}
}

func TestSQLiteStorage_GetChunksByResourceIDs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_ = store.CreateResource(ctx, &models.Resource{ID: "r1", UserID: "u", Name: "a"}, []*models.Chunk{
		{ID: "a1", ChunkIndex: 1, Content: "a-second", Embedding: "[0,1]"},
		{ID: "a0", ChunkIndex: 0, Content: "a-first", Embedding: "[1,0]"},
	})
	_ = store.CreateResource(ctx, &models.Resource{ID: "r2", UserID: "u", Name: "b"}, []*models.Chunk{
		{ID: "b0", ChunkIndex: 0, Content: "b-first", Embedding: "not json"},
	})

	chunks, err := store.GetChunksByResourceIDs(ctx, []string{"r1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || chunks[0].ID != "a0" || chunks[1].ID != "a1" {
		t.Errorf("expected r1 chunks in index order, got %+v", chunks)
	}
	if chunks[0].Embedding != "[1,0]" {
		t.Errorf("embedding = %q", chunks[0].Embedding)
	}

	all, err := store.GetChunksByResourceIDs(ctx, []string{"r1", "r2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 chunks, got %d", len(all))
	}

	none, err := store.GetChunksByResourceIDs(ctx, nil)
	if err != nil || none != nil {
		t.Errorf("no ids: %v, %v", none, err)
	}
}

func TestSQLiteStorage_Counts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	n, err := store.CountResources(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountResources: %v, %d", err, n)
	}
	_ = store.CreateResource(ctx, &models.Resource{ID: "x", UserID: "u", Name: "x"}, []*models.Chunk{{ID: "x0", Content: "c"}})
	if n, _ = store.CountResources(ctx); n != 1 {
		t.Errorf("expected 1 resource, got %d", n)
	}
	if n, _ = store.CountChunks(ctx); n != 1 {
		t.Errorf("expected 1 chunk, got %d", n)
	}
}

func TestSQLiteStorage_CountsByUser(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_ = store.CreateResource(ctx, &models.Resource{ID: "a", UserID: "u1", Name: "a"}, []*models.Chunk{{ID: "a0", Content: "c"}, {ID: "a1", Content: "d"}})
	_ = store.CreateResource(ctx, &models.Resource{ID: "b", UserID: "u2", Name: "b"}, []*models.Chunk{{ID: "b0", Content: "e"}})

	tests := []struct {
		user      string
		resources int64
		chunks    int64
	}{
		{"u1", 1, 2},
		{"u2", 1, 1},
		{"nobody", 0, 0},
	}
	for _, tt := range tests {
		n, err := store.CountResourcesByUser(ctx, tt.user)
		if err != nil || n != tt.resources {
			t.Errorf("CountResourcesByUser(%s) = %d, %v; want %d", tt.user, n, err, tt.resources)
		}
		n, err = store.CountChunksByUser(ctx, tt.user)
		if err != nil || n != tt.chunks {
			t.Errorf("CountChunksByUser(%s) = %d, %v; want %d", tt.user, n, err, tt.chunks)
		}
	}
}
