package feed

import (
	"net/http"

	"github.com/cirruslabs/imagecache/internal/signedurl"
	"go.uber.org/zap"
)

type Option func(cache *Cache)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(cache *Cache) {
		cache.httpClient = httpClient
	}
}

// WithSigner enables signing of media stored as object URIs.
func WithSigner(signer signedurl.Signer) Option {
	return func(cache *Cache) {
		cache.signer = signer
	}
}

func WithTokenFunc(token func() string) Option {
	return func(cache *Cache) {
		cache.token = token
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(cache *Cache) {
		cache.logger = logger
	}
}
