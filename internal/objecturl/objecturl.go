package objecturl

import (
	"context"
	"errors"
	"fmt"
	"io"

	blobpkg "github.com/cirruslabs/imagecache/internal/blob"
	"github.com/cirruslabs/imagecache/internal/objecturl/box"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

const DefaultBaseURL = "/blobs/"

var ErrRevoked = errors.New("object handle was revoked")

// Handle is a process-local reference to a materialized blob,
// usable directly as an image source.
type Handle struct {
	ID    string
	Token string
	URL   string
}

func (handle Handle) String() string {
	return handle.URL
}

func (handle Handle) IsZero() bool {
	return handle.ID == ""
}

type Registry struct {
	store      blobpkg.Store
	boxManager *box.Manager
	baseURL    string
	live       *xsync.MapOf[string, struct{}]
	logger     *zap.SugaredLogger
}

func New(store blobpkg.Store, opts ...Option) (*Registry, error) {
	boxManager, err := box.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handle sealing: %w", err)
	}

	registry := &Registry{
		store:      store,
		boxManager: boxManager,
		baseURL:    DefaultBaseURL,
		live:       xsync.NewMapOf[string, struct{}](),
	}

	// Apply options
	for _, opt := range opts {
		opt(registry)
	}

	// Apply defaults
	if registry.logger == nil {
		registry.logger = zap.NewNop().Sugar()
	}

	return registry, nil
}

// Create materializes the blob and issues a new handle for it.
func (registry *Registry) Create(ctx context.Context, blobReader io.Reader, contentType string) (Handle, int64, error) {
	id := uuid.NewString()

	token, err := registry.boxManager.Seal(box.Box{BlobID: id})
	if err != nil {
		return Handle{}, 0, fmt.Errorf("failed to seal handle: %w", err)
	}

	n, err := registry.store.Put(ctx, id, blobpkg.Metadata{ContentType: contentType}, blobReader)
	if err != nil {
		// The store may have kept a partial blob
		_ = registry.store.Delete(context.WithoutCancel(ctx), id)

		return Handle{}, 0, fmt.Errorf("failed to materialize blob: %w", err)
	}

	registry.live.Store(id, struct{}{})

	return Handle{
		ID:    id,
		Token: token,
		URL:   registry.baseURL + token,
	}, n, nil
}

// Revoke releases the handle's blob. Revoking an unknown
// or already revoked handle is a no-op.
func (registry *Registry) Revoke(ctx context.Context, handle Handle) {
	if _, ok := registry.live.LoadAndDelete(handle.ID); !ok {
		return
	}

	if err := registry.store.Delete(ctx, handle.ID); err != nil && !errors.Is(err, blobpkg.ErrNotFound) {
		registry.logger.Warnf("failed to delete blob %s: %v", handle.ID, err)
	}
}

func (registry *Registry) Open(ctx context.Context, token string) (io.ReadCloser, blobpkg.Metadata, error) {
	unsealedBox, err := registry.boxManager.Unseal(token)
	if err != nil {
		return nil, blobpkg.Metadata{}, fmt.Errorf("%w: %v", ErrRevoked, err)
	}

	if _, ok := registry.live.Load(unsealedBox.BlobID); !ok {
		return nil, blobpkg.Metadata{}, ErrRevoked
	}

	blobReader, metadata, err := registry.store.Get(ctx, unsealedBox.BlobID)
	if err != nil {
		if errors.Is(err, blobpkg.ErrNotFound) {
			return nil, blobpkg.Metadata{}, ErrRevoked
		}

		return nil, blobpkg.Metadata{}, err
	}

	return blobReader, metadata, nil
}

func (registry *Registry) IsLive(handle Handle) bool {
	_, ok := registry.live.Load(handle.ID)

	return ok
}

func (registry *Registry) Len() int {
	return registry.live.Size()
}
