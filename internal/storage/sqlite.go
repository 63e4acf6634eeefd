// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tutorly/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_resources_user_name ON resources(user_id, name);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_resource_id ON chunks(resource_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateResource inserts a resource and its chunks in one transaction.
func (s *SQLiteStorage) CreateResource(ctx context.Context, res *models.Resource, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	res.CreatedAt = now
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO resources (id, user_id, name, url, created_at) VALUES (?, ?, ?, ?, ?)`,
		res.ID, res.UserID, res.Name, res.URL, res.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, resource_id, chunk_index, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		chunk.ResourceID = res.ID
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.ResourceID, chunk.ChunkIndex, chunk.Content, chunk.Embedding, chunk.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

// GetResource returns a resource by ID.
func (s *SQLiteStorage) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	var res models.Resource
	var url sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, url, created_at FROM resources WHERE id = ?`, id,
	).Scan(&res.ID, &res.UserID, &res.Name, &url, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	res.URL = url.String
	return &res, nil
}

// ListResources returns the user's resources, newest first.
func (s *SQLiteStorage) ListResources(ctx context.Context, userID string) ([]*models.Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, url, created_at
		 FROM resources WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return scanResources(rows)
}

// FindResourcesByNames returns the user's resources whose name is in names.
// Names that match nothing are ignored.
func (s *SQLiteStorage) FindResourcesByNames(ctx context.Context, userID string, names []string) ([]*models.Resource, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(names)+1)
	args = append(args, userID)
	for _, n := range names {
		args = append(args, n)
	}
	query := `SELECT id, user_id, name, url, created_at
		 FROM resources WHERE user_id = ? AND name IN (` + placeholders(len(names)) + `)
		 ORDER BY name, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanResources(rows)
}

func scanResources(rows *sql.Rows) ([]*models.Resource, error) {
	defer rows.Close()
	var out []*models.Resource
	for rows.Next() {
		var res models.Resource
		var url sql.NullString
		if err := rows.Scan(&res.ID, &res.UserID, &res.Name, &url, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.URL = url.String
		out = append(out, &res)
	}
	return out, rows.Err()
}

// DeleteResource removes a resource and its chunks.
func (s *SQLiteStorage) DeleteResource(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE resource_id = ?`, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return tx.Commit()
}

// GetChunksByResourceIDs returns all chunks of the given resources ordered by resource and chunk index.
func (s *SQLiteStorage) GetChunksByResourceIDs(ctx context.Context, resourceIDs []string) ([]*models.Chunk, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(resourceIDs))
	for i, id := range resourceIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, resource_id, chunk_index, content, embedding, created_at
		 FROM chunks WHERE resource_id IN (`+placeholders(len(resourceIDs))+`)
		 ORDER BY resource_id, chunk_index`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var embedding sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.ResourceID, &chunk.ChunkIndex, &chunk.Content, &embedding, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunk.Embedding = embedding.String
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// CountChunksByResourceID returns the number of chunks stored for a resource.
func (s *SQLiteStorage) CountChunksByResourceID(ctx context.Context, resourceID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE resource_id = ?`, resourceID).Scan(&count)
	return count, err
}

// CountResources returns the total number of resources.
func (s *SQLiteStorage) CountResources(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountResourcesByUser returns the number of resources owned by userID.
func (s *SQLiteStorage) CountResourcesByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

// CountChunksByUser returns the number of chunks in resources owned by userID.
func (s *SQLiteStorage) CountChunksByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks c JOIN resources r ON r.id = c.resource_id WHERE r.user_id = ?`,
		userID,
	).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
