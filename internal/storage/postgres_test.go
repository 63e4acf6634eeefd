package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/hyperjump/tutorly/internal/models"
)

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.db.calls = append(tx.db.calls, execCall{sql: sql, args: args})
	if tx.db.failOn != "" && strings.Contains(sql, tx.db.failOn) {
		return pgconn.CommandTag{}, errors.New("relation does not exist")
	}
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.db.done {
		return pgx.ErrTxClosed
	}
	tx.db.done = true
	tx.db.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.db.done {
		return pgx.ErrTxClosed
	}
	tx.db.done = true
	tx.db.rolledBack = true
	return nil
}

type fakeDB struct {
	calls      []execCall
	failOn     string
	done       bool
	committed  bool
	rolledBack bool
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	db.done = false
	return &fakeTx{db: db}, nil
}

func TestNewPostgresChunkStore_tableNames(t *testing.T) {
	tests := []struct {
		resources, chunks string
		wantErr           bool
	}{
		{"resources", "chunks", false},
		{"public.resources", "public.chunks", false},
		{"resources; DROP TABLE x", "chunks", true},
		{"resources", "", true},
		{"1resources", "chunks", true},
	}
	for _, tt := range tests {
		_, err := NewPostgresChunkStore(&fakeDB{}, tt.resources, tt.chunks)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewPostgresChunkStore(%q, %q) error = %v, wantErr %v", tt.resources, tt.chunks, err, tt.wantErr)
		}
	}
	if _, err := NewPostgresChunkStore(nil, "resources", "chunks"); err == nil {
		t.Error("expected error for nil database")
	}
}

func TestPostgresChunkStore_PutResource(t *testing.T) {
	db := &fakeDB{}
	store, err := NewPostgresChunkStore(db, "resources", "chunks")
	if err != nil {
		t.Fatal(err)
	}
	res := &models.Resource{ID: "r1", UserID: "u1", Name: "manual.txt", URL: "file:///tmp/manual.txt"}
	chunks := []*models.Chunk{
		{ID: "c1", ChunkIndex: 0, Content: "first", Embedding: "[1,0]"},
		{ID: "c2", ChunkIndex: 1, Content: "second", Embedding: "[0.5,0.5]"},
	}
	if err := store.PutResource(context.Background(), res, chunks); err != nil {
		t.Fatal(err)
	}
	if !db.committed || db.rolledBack {
		t.Errorf("expected commit, got committed=%v rolledBack=%v", db.committed, db.rolledBack)
	}
	if len(db.calls) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(db.calls))
	}
	if !strings.HasPrefix(db.calls[0].sql, "INSERT INTO resources") || db.calls[0].args[0] != "r1" || db.calls[0].args[1] != "u1" {
		t.Errorf("upsert: %+v", db.calls[0])
	}
	if !strings.HasPrefix(db.calls[1].sql, "DELETE FROM chunks") || db.calls[1].args[0] != "r1" {
		t.Errorf("clear: %+v", db.calls[1])
	}
	insert := db.calls[3]
	if !strings.HasPrefix(insert.sql, "INSERT INTO chunks") || insert.args[0] != "c2" || insert.args[1] != "r1" || insert.args[2] != 1 {
		t.Errorf("insert: %+v", insert)
	}
	vec, ok := insert.args[4].(pgvector.Vector)
	if !ok {
		t.Fatalf("embedding arg is %T, want pgvector.Vector", insert.args[4])
	}
	if got := vec.Slice(); len(got) != 2 || got[0] != 0.5 || got[1] != 0.5 {
		t.Errorf("embedding = %v", got)
	}
}

func TestPostgresChunkStore_PutResourceRollsBack(t *testing.T) {
	db := &fakeDB{failOn: "INSERT INTO chunks"}
	store, err := NewPostgresChunkStore(db, "resources", "chunks")
	if err != nil {
		t.Fatal(err)
	}
	res := &models.Resource{ID: "r1", UserID: "u1", Name: "manual.txt"}
	chunks := []*models.Chunk{{ID: "c1", Content: "first", Embedding: "[1,0]"}}
	if err := store.PutResource(context.Background(), res, chunks); err == nil {
		t.Fatal("expected error")
	}
	if db.committed || !db.rolledBack {
		t.Errorf("expected rollback, got committed=%v rolledBack=%v", db.committed, db.rolledBack)
	}
}

func TestPostgresChunkStore_PutResourceBadEmbedding(t *testing.T) {
	db := &fakeDB{}
	store, err := NewPostgresChunkStore(db, "resources", "chunks")
	if err != nil {
		t.Fatal(err)
	}
	res := &models.Resource{ID: "r1", UserID: "u1", Name: "manual.txt"}
	chunks := []*models.Chunk{{ID: "c1", Content: "first", Embedding: "not a vector"}}
	if err := store.PutResource(context.Background(), res, chunks); err == nil {
		t.Fatal("expected error for an undecodable embedding")
	}
	if len(db.calls) != 0 {
		t.Errorf("nothing should be written, got %d statements", len(db.calls))
	}
}

func TestPostgresChunkStore_DeleteResource(t *testing.T) {
	db := &fakeDB{}
	store, err := NewPostgresChunkStore(db, "public.resources", "public.chunks")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteResource(context.Background(), "r1"); err != nil {
		t.Fatal(err)
	}
	if len(db.calls) != 2 || !db.committed {
		t.Fatalf("calls=%d committed=%v", len(db.calls), db.committed)
	}
	if !strings.HasPrefix(db.calls[0].sql, "DELETE FROM public.chunks") || !strings.HasPrefix(db.calls[1].sql, "DELETE FROM public.resources") {
		t.Errorf("unexpected statements: %q, %q", db.calls[0].sql, db.calls[1].sql)
	}
}
