package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

type Metadata struct {
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}

// Store keeps materialized payloads behind object handles. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, id string) (io.ReadCloser, Metadata, error)
	Put(ctx context.Context, id string, metadata Metadata, blobReader io.Reader) (int64, error)
	Delete(ctx context.Context, id string) error
}
