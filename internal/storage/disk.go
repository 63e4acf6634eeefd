// Package storage provides the local blob store for uploaded files and disk usage helpers.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore keeps uploaded files on local disk under root/<user>/<resource>/<name>.
type BlobStore struct {
	root string
}

// NewBlobStore creates the root directory if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &BlobStore{root: root}, nil
}

// Root returns the directory blobs are stored under.
func (b *BlobStore) Root() string {
	return b.root
}

// Put writes r to the blob path for the given owner, resource and file name and returns its URL.
func (b *BlobStore) Put(userID, resourceID, name string, r io.Reader) (string, error) {
	dir := filepath.Join(b.root, safeSegment(userID), safeSegment(resourceID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	path := filepath.Join(dir, safeSegment(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	return "file://" + path, nil
}

// Delete removes the blob behind url. URLs outside the store root are ignored.
func (b *BlobStore) Delete(url string) error {
	path := strings.TrimPrefix(url, "file://")
	if path == url || !strings.HasPrefix(filepath.Clean(path), filepath.Clean(b.root)+string(filepath.Separator)) {
		return nil
	}
	if err := os.RemoveAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// safeSegment strips path separators so a user-supplied name cannot escape its directory.
func safeSegment(s string) string {
	s = filepath.Base(filepath.Clean("/" + s))
	if s == "/" || s == "." || s == "" {
		return "_"
	}
	return s
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.Walk(p, func(_ string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !fi.IsDir() {
				total += fi.Size()
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
