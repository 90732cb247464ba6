package profile

import (
	"net/http"

	"go.uber.org/zap"
)

type Option func(cache *Cache)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(cache *Cache) {
		cache.httpClient = httpClient
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
