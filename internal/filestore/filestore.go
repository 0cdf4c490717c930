package filestore

import (
	"io"
)

// FileStore stores and retrieves uploaded blobs by content hash.
type FileStore interface {
	// Save stores the blob content under the given hash.
	// It is idempotent: if a blob with the same hash already exists,
	// it returns nil.
	Save(r io.Reader, hash string) error

	// Get retrieves the blob content for the given hash.
	Get(hash string) (io.ReadCloser, error)
}
