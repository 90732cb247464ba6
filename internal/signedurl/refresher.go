package signedurl

import (
	"context"
	"errors"
	"fmt"

	"github.com/cirruslabs/imagecache/internal/imagecache"
	"github.com/cirruslabs/imagecache/internal/keyrule"
	"github.com/cirruslabs/imagecache/internal/objecturl"
	"go.uber.org/zap"
)

// Cache is the part of the image cache the refresher relies on.
type Cache interface {
	Get(ctx context.Context, url string, key string) (objecturl.Handle, error)
	Refresh(ctx context.Context, url string, key string) (objecturl.Handle, error)
}

type Result struct {
	// Handle is set when the image is available from the cache.
	Handle objecturl.Handle

	// Fallback is the URL to render directly when Handle is not set.
	Fallback string

	// Recovered reports that a fresh signed URL had to be obtained.
	Recovered bool
}

// Refresher loads images through the cache and, when a signed URL turns out
// to be expired, obtains a fresh one and re-primes the same cache slot.
type Refresher struct {
	cache  Cache
	signer Signer
	rules  keyrule.Rules
	logger *zap.SugaredLogger
}

func NewRefresher(cache Cache, signer Signer, opts ...RefresherOption) *Refresher {
	refresher := &Refresher{
		cache:  cache,
		signer: signer,
	}

	// Apply options
	for _, opt := range opts {
		opt(refresher)
	}

	// Apply defaults
	if refresher.logger == nil {
		refresher.logger = zap.NewNop().Sugar()
	}

	return refresher
}

// Load returns a handle for the resource, recovering once from a failed fetch.
func (refresher *Refresher) Load(ctx context.Context, resource Resource) (Result, error) {
	key := resource.StableKey(refresher.rules)

	displayURL := resource.URL
	if displayURL == "" {
		// Nothing to display yet, go straight to signing
		return refresher.recover(ctx, resource, key)
	}

	handle, err := refresher.cache.Get(ctx, displayURL, key)
	if err == nil {
		return Result{Handle: handle}, nil
	}

	if !errors.Is(err, imagecache.ErrResourceFetchFailed) {
		return Result{Fallback: refresher.fallback(resource)}, err
	}

	refresher.logger.Debugf("failed to load %s, trying to re-sign: %v", key, err)

	return refresher.recover(ctx, resource, key)
}

// Recover obtains a fresh signed URL for a resource whose handle failed
// to render and re-primes its cache slot. It's a single attempt.
func (refresher *Refresher) Recover(ctx context.Context, resource Resource) (Result, error) {
	return refresher.recover(ctx, resource, resource.StableKey(refresher.rules))
}

func (refresher *Refresher) recover(ctx context.Context, resource Resource, key string) (Result, error) {
	if refresher.signer == nil {
		return Result{Fallback: refresher.fallback(resource)},
			fmt.Errorf("%w: no signer configured", ErrSignedURLRequestFailed)
	}

	signedURL, err := refresher.signer.SignedURL(ctx, resource)
	if err != nil {
		refresher.logger.Debugf("failed to re-sign %s: %v", key, err)

		return Result{Fallback: refresher.fallback(resource)}, err
	}

	handle, err := refresher.cache.Refresh(ctx, signedURL, key)
	if err != nil {
		return Result{Fallback: signedURL}, err
	}

	refresher.logger.Debugf("re-primed %s with a fresh signed URL", key)

	return Result{Handle: handle, Recovered: true}, nil
}

func (refresher *Refresher) fallback(resource Resource) string {
	if resource.URL != "" {
		return resource.URL
	}

	return ResolveGCS(resource.ObjectURI)
}
