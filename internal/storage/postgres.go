package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/hyperjump/tutorly/internal/embedding"
	"github.com/hyperjump/tutorly/internal/models"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// OpenPostgres connects a pool to dsn and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// TxBeginner is the subset of *pgxpool.Pool used by PostgresChunkStore.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresChunkStore writes resources and their embedded chunks to the Postgres tables that
// the similarity function reads. Embeddings are stored in a pgvector column.
type PostgresChunkStore struct {
	db             TxBeginner
	upsertResource string
	deleteChunks   string
	insertChunk    string
	deleteResource string
}

// NewPostgresChunkStore creates a chunk store over db using the given table names.
func NewPostgresChunkStore(db TxBeginner, resourcesTable, chunksTable string) (*PostgresChunkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres chunk store: nil database")
	}
	for _, name := range []string{resourcesTable, chunksTable} {
		if !tableNameRe.MatchString(name) {
			return nil, fmt.Errorf("postgres chunk store: invalid table name %q", name)
		}
	}
	return &PostgresChunkStore{
		db: db,
		upsertResource: fmt.Sprintf(`INSERT INTO %s (id, user_id, name, url, created_at) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, name = EXCLUDED.name, url = EXCLUDED.url, created_at = EXCLUDED.created_at`,
			resourcesTable),
		deleteChunks:   fmt.Sprintf(`DELETE FROM %s WHERE resource_id = $1`, chunksTable),
		insertChunk:    fmt.Sprintf(`INSERT INTO %s (id, resource_id, chunk_index, content, embedding) VALUES ($1, $2, $3, $4, $5)`, chunksTable),
		deleteResource: fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, resourcesTable),
	}, nil
}

// PutResource writes res and replaces its chunks in one transaction.
func (s *PostgresChunkStore) PutResource(ctx context.Context, res *models.Resource, chunks []*models.Chunk) error {
	vecs := make([]pgvector.Vector, len(chunks))
	for i, c := range chunks {
		v, err := embedding.DecodeVector(c.Embedding, 0)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", c.ChunkIndex, err)
		}
		vecs[i] = pgvector.NewVector(v)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, s.upsertResource, res.ID, res.UserID, res.Name, res.URL, res.CreatedAt); err != nil {
			return fmt.Errorf("upsert resource: %w", err)
		}
		if _, err := tx.Exec(ctx, s.deleteChunks, res.ID); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}
		for i, c := range chunks {
			if _, err := tx.Exec(ctx, s.insertChunk, c.ID, res.ID, c.ChunkIndex, c.Content, vecs[i]); err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
			}
		}
		return nil
	})
}

// DeleteResource removes a resource and its chunks. A missing resource is not an error.
func (s *PostgresChunkStore) DeleteResource(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, s.deleteChunks, id); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if _, err := tx.Exec(ctx, s.deleteResource, id); err != nil {
			return fmt.Errorf("delete resource: %w", err)
		}
		return nil
	})
}
