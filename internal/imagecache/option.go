package imagecache

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Option func(cache *Cache)

func WithCapacity(capacity int) Option {
	return func(cache *Cache) {
		cache.capacity = capacity
	}
}

// WithHTTPClient replaces the default client, WithFetchTimeout
// has no effect then.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(cache *Cache) {
		cache.httpClient = httpClient
	}
}

func WithFetchTimeout(fetchTimeout time.Duration) Option {
	return func(cache *Cache) {
		cache.fetchTimeout = fetchTimeout
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(cache *Cache) {
		cache.meter = meter
	}
}

// WithClock overrides the source of LastUsed timestamps.
func WithClock(now func() time.Time) Option {
	return func(cache *Cache) {
		cache.now = now
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(cache *Cache) {
		cache.logger = logger
	}
}
