// Package fileid derives stable resource IDs for files ingested from a local path.
package fileid

import (
	"path/filepath"

	"github.com/google/uuid"
)

// namespace scopes path-derived IDs so they cannot collide with other name-based UUIDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tutorly:file"))

// ResourceID returns a stable UUID for owner's file at path.
// The same owner and cleaned path always yield the same ID.
func ResourceID(owner, path string) string {
	name := owner + "\x00" + filepath.Clean(path)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
