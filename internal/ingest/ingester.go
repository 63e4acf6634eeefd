package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/tutorly/internal/embedding"
	"github.com/hyperjump/tutorly/internal/extract"
	"github.com/hyperjump/tutorly/internal/fileid"
	"github.com/hyperjump/tutorly/internal/models"
	"github.com/hyperjump/tutorly/internal/storage"
	"go.uber.org/zap"
)

// ErrEmbedding marks ingestion failures caused by the embedding provider.
var ErrEmbedding = errors.New("embedding failed")

// BlobStore keeps the original uploaded bytes.
type BlobStore interface {
	Put(userID, resourceID, name string, r io.Reader) (string, error)
	Delete(url string) error
}

// ChunkMirror receives a copy of every persisted resource and its embedded chunks, keyed by the
// same resource ID. The delegated retrieval strategy reads chunks from it.
type ChunkMirror interface {
	PutResource(ctx context.Context, res *models.Resource, chunks []*models.Chunk) error
	DeleteResource(ctx context.Context, id string) error
}

// Upload is a document to ingest for a user.
type Upload struct {
	// ID is optional; a random UUID is used when empty.
	ID      string
	UserID  string
	Name    string
	Content []byte
}

// Result describes an ingested resource.
type Result struct {
	Resource *models.Resource `json:"resource"`
	Chunks   int              `json:"chunks"`
}

// Ingester stores, extracts, chunks, embeds and persists documents.
type Ingester struct {
	store     storage.Storage
	blobs     BlobStore
	embedder  embedding.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	mirror    ChunkMirror
	logger    *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithMirror also writes ingested chunks to m and removes them from it on delete.
func WithMirror(m ChunkMirror) Option {
	return func(in *Ingester) {
		in.mirror = m
	}
}

// NewIngester creates an ingester with the given dependencies.
func NewIngester(
	store storage.Storage,
	blobs BlobStore,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	chunker *Chunker,
	opts ...Option,
) *Ingester {
	in := &Ingester{
		store:     store,
		blobs:     blobs,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Supports reports whether a file named name can be ingested.
func (in *Ingester) Supports(name string) bool {
	return in.extractor.Supports(name)
}

// Ingest stores the upload, extracts and chunks its text, embeds every chunk and persists the
// resource with its chunks in one transaction. Nothing is persisted when any step fails.
// A document without text is stored as a resource with zero chunks.
func (in *Ingester) Ingest(ctx context.Context, up *Upload) (*Result, error) {
	name := filepath.Base(strings.TrimSpace(up.Name))
	if up.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("file name is required")
	}
	if !in.extractor.Supports(name) {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupportedType, filepath.Ext(name))
	}
	id := up.ID
	if id == "" {
		id = uuid.NewString()
	}

	text, err := in.extractor.Extract(name, up.Content)
	if err != nil {
		return nil, err
	}
	chunks := in.chunker.Chunk(id, Preprocess(text))
	if err := in.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	url, err := in.blobs.Put(up.UserID, id, name, bytes.NewReader(up.Content))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	res := &models.Resource{ID: id, UserID: up.UserID, Name: name, URL: url}
	if err := in.store.CreateResource(ctx, res, chunks); err != nil {
		if delErr := in.blobs.Delete(url); delErr != nil {
			in.logger.Warn("failed to remove blob after store error", zap.String("url", url), zap.Error(delErr))
		}
		return nil, fmt.Errorf("store resource: %w", err)
	}
	if in.mirror != nil {
		if err := in.mirror.PutResource(ctx, res, chunks); err != nil {
			if delErr := in.store.DeleteResource(ctx, id); delErr != nil {
				in.logger.Warn("failed to remove resource after mirror error", zap.String("resource_id", id), zap.Error(delErr))
			}
			if delErr := in.blobs.Delete(url); delErr != nil {
				in.logger.Warn("failed to remove blob after mirror error", zap.String("url", url), zap.Error(delErr))
			}
			return nil, fmt.Errorf("mirror resource: %w", err)
		}
	}
	in.logger.Info("resource ingested",
		zap.String("resource_id", id),
		zap.String("user_id", up.UserID),
		zap.String("name", name),
		zap.Int("chunks", len(chunks)))
	return &Result{Resource: res, Chunks: len(chunks)}, nil
}

func (in *Ingester) embedChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vecs), len(chunks))
	}
	for i, v := range vecs {
		enc, err := embedding.EncodeVector(v)
		if err != nil {
			return err
		}
		chunks[i].Embedding = enc
	}
	return nil
}

// DeleteResource removes a user's resource, its chunks and its stored upload.
// A resource owned by another user is reported as storage.ErrNotFound.
// The mirror copy is removed first so a failure leaves the resource listed and retryable.
func (in *Ingester) DeleteResource(ctx context.Context, userID, id string) error {
	res, err := in.store.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if res.UserID != userID {
		return fmt.Errorf("resource %s: %w", id, storage.ErrNotFound)
	}
	if in.mirror != nil {
		if err := in.mirror.DeleteResource(ctx, id); err != nil {
			return fmt.Errorf("delete mirrored resource: %w", err)
		}
	}
	if err := in.store.DeleteResource(ctx, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if err := in.blobs.Delete(res.URL); err != nil {
		in.logger.Warn("failed to remove blob", zap.String("url", res.URL), zap.Error(err))
	}
	in.logger.Info("resource deleted", zap.String("resource_id", id), zap.String("user_id", userID))
	return nil
}

// IngestPath ingests a local file for owner under a resource ID derived from its absolute path,
// replacing any earlier ingestion of the same path.
func (in *Ingester) IngestPath(ctx context.Context, owner, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !in.extractor.Supports(absPath) {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupportedType, filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	id := fileid.ResourceID(owner, absPath)
	if err := in.DeleteResource(ctx, owner, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("replace previous ingestion: %w", err)
	}
	in.logger.Debug("ingesting file", zap.String("path", absPath), zap.String("resource_id", id))
	return in.Ingest(ctx, &Upload{ID: id, UserID: owner, Name: filepath.Base(absPath), Content: content})
}

// RemovePath deletes the resource previously ingested from path for owner, if any.
func (in *Ingester) RemovePath(ctx context.Context, owner, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	err = in.DeleteResource(ctx, owner, fileid.ResourceID(owner, absPath))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// IngestDirectory walks dir recursively and ingests every supported regular file for owner.
// It returns the results in walk order and stops at the first error, returning what was
// ingested before it.
func (in *Ingester) IngestDirectory(ctx context.Context, owner, dir string) ([]*Result, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var results []*Result
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !in.extractor.Supports(path) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		res, ingestErr := in.IngestPath(ctx, owner, path)
		if ingestErr != nil {
			return fmt.Errorf("%s: %w", path, ingestErr)
		}
		results = append(results, res)
		return nil
	})
	return results, err
}
