package blob

import (
	"context"
	"io"
)

// Store provides access to the document bucket.
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	PublicURL(path string) string
}
