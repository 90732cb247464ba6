package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"

	blobpkg "github.com/cirruslabs/imagecache/internal/blob"
	"github.com/puzpuzpuz/xsync/v3"
)

type entry struct {
	metadata blobpkg.Metadata
	data     []byte
}

type Memory struct {
	entries *xsync.MapOf[string, *entry]
}

func New() *Memory {
	return &Memory{
		entries: xsync.NewMapOf[string, *entry](),
	}
}

func (memory *Memory) Get(_ context.Context, id string) (io.ReadCloser, blobpkg.Metadata, error) {
	entry, ok := memory.entries.Load(id)
	if !ok {
		return nil, blobpkg.Metadata{}, blobpkg.ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(entry.data)), entry.metadata, nil
}

func (memory *Memory) Put(_ context.Context, id string, metadata blobpkg.Metadata, blobReader io.Reader) (int64, error) {
	data, err := io.ReadAll(blobReader)
	if err != nil {
		return 0, fmt.Errorf("failed to read blob %q: %w", id, err)
	}

	metadata.Size = int64(len(data))

	memory.entries.Store(id, &entry{
		metadata: metadata,
		data:     data,
	})

	return metadata.Size, nil
}

func (memory *Memory) Delete(_ context.Context, id string) error {
	if _, ok := memory.entries.LoadAndDelete(id); !ok {
		return blobpkg.ErrNotFound
	}

	return nil
}

func (memory *Memory) Len() int {
	return memory.entries.Size()
}
