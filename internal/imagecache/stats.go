package imagecache

import (
	"context"

	"github.com/cirruslabs/imagecache/internal/opentelemetry"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type operation string

const (
	operationHit      operation = "hit"
	operationMiss     operation = "miss"
	operationRefresh  operation = "refresh"
	operationFailure  operation = "failure"
	operationEviction operation = "eviction"
)

type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Bytes     int64  `json:"bytes"`
	InFlight  int    `json:"in_flight"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Refreshes uint64 `json:"refreshes"`
	Failures  uint64 `json:"failures"`
	Evictions uint64 `json:"evictions"`
}

type metrics struct {
	operationCounter    metric.Int64Counter
	fetchedBytesCounter metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	operationCounter, err := meter.Int64Counter("org.cirruslabs.imagecache.operation_count")
	if err != nil {
		return nil, err
	}

	fetchedBytesCounter, err := meter.Int64Counter("org.cirruslabs.imagecache.fetched_bytes",
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	return &metrics{
		operationCounter:    operationCounter,
		fetchedBytesCounter: fetchedBytesCounter,
	}, nil
}

func (cache *Cache) initMetrics() {
	if cache.meter == nil {
		cache.meter = opentelemetry.DefaultMeter
	}

	cacheMetrics, err := newMetrics(cache.meter)
	if err != nil {
		cache.logger.Warnf("failed to initialize metrics, continuing without them: %v", err)

		cacheMetrics, _ = newMetrics(noop.NewMeterProvider().Meter(""))
	}

	cache.metrics = cacheMetrics
}

// count records n operations both in the Stats snapshot and in metrics.
// Must be called with cache.mtx held.
func (cache *Cache) count(op operation, n int) {
	if n == 0 {
		return
	}

	switch op {
	case operationHit:
		cache.stats.Hits += uint64(n)
	case operationMiss:
		cache.stats.Misses += uint64(n)
	case operationRefresh:
		cache.stats.Refreshes += uint64(n)
	case operationFailure:
		cache.stats.Failures += uint64(n)
	case operationEviction:
		cache.stats.Evictions += uint64(n)
	}

	cache.metrics.operationCounter.Add(context.Background(), int64(n),
		metric.WithAttributes(attribute.String("operation", string(op))))
}

func (cache *Cache) Stats() Stats {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	stats := cache.stats
	stats.Entries = len(cache.entries)
	stats.Capacity = cache.capacity
	stats.InFlight = len(cache.flights)
	stats.Bytes = lo.SumBy(lo.Values(cache.entries), func(entry *Entry) int64 {
		return entry.Size
	})

	return stats
}
