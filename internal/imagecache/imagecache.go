package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cirruslabs/imagecache/internal/objecturl"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	DefaultCapacity     = 100
	DefaultFetchTimeout = 30 * time.Second
)

// Registry materializes payloads into object handles and releases them.
type Registry interface {
	Create(ctx context.Context, blobReader io.Reader, contentType string) (objecturl.Handle, int64, error)
	Revoke(ctx context.Context, handle objecturl.Handle)
}

type Entry struct {
	Handle    objecturl.Handle
	Size      int64
	LastUsed  time.Time
	SourceURL string

	// tie-breaker for entries touched at the same instant
	seq uint64
}

// Cache maps stable cache keys to object handles of downloaded images.
// It holds at most capacity entries and evicts the least recently used
// ones in batches of 10% of the capacity.
type Cache struct {
	registry     Registry
	httpClient   *http.Client
	fetchTimeout time.Duration
	capacity     int
	now          func() time.Time
	logger       *zap.SugaredLogger
	meter        metric.Meter
	metrics      *metrics

	mtx     sync.Mutex
	entries map[string]*Entry
	flights map[flightKey]*flight
	seq     uint64
	stats   Stats

	subscriberSeq uint64
	subscribers   map[uint64]func()
}

func New(registry Registry, opts ...Option) *Cache {
	cache := &Cache{
		registry:    registry,
		entries:     map[string]*Entry{},
		flights:     map[flightKey]*flight{},
		subscribers: map[uint64]func(){},
	}

	// Apply options
	for _, opt := range opts {
		opt(cache)
	}

	// Apply defaults
	if cache.capacity <= 0 {
		cache.capacity = DefaultCapacity
	}

	if cache.fetchTimeout <= 0 {
		cache.fetchTimeout = DefaultFetchTimeout
	}

	if cache.httpClient == nil {
		cache.httpClient = &http.Client{
			Timeout: cache.fetchTimeout,
		}
	}

	if cache.now == nil {
		cache.now = time.Now
	}

	if cache.logger == nil {
		cache.logger = zap.NewNop().Sugar()
	}

	cache.initMetrics()

	return cache
}

// Get returns the handle cached under key, fetching url on a miss.
// An empty key defaults to url. Concurrent misses for the same key
// share a single fetch.
func (cache *Cache) Get(ctx context.Context, url string, key string) (objecturl.Handle, error) {
	if key == "" {
		key = url
	}

	if err := ctx.Err(); err != nil {
		return objecturl.Handle{}, err
	}

	cache.mtx.Lock()

	if entry, ok := cache.entries[key]; ok {
		cache.touch(entry)
		cache.count(operationHit, 1)
		handle := entry.Handle

		cache.mtx.Unlock()

		cache.logger.Debugf("cache hit for %s", key)

		return handle, nil
	}

	cache.count(operationMiss, 1)
	fk, f := cache.join(key, url, false)

	cache.mtx.Unlock()

	cache.logger.Debugf("cache miss for %s, fetching %s", key, url)

	return cache.wait(ctx, fk, f)
}

// Refresh fetches url and stores it under key, replacing (and revoking)
// whatever handle the key had. This is how a re-signed URL re-primes
// the slot of the same logical resource.
func (cache *Cache) Refresh(ctx context.Context, url string, key string) (objecturl.Handle, error) {
	if key == "" {
		key = url
	}

	if err := ctx.Err(); err != nil {
		return objecturl.Handle{}, err
	}

	cache.mtx.Lock()
	cache.count(operationRefresh, 1)
	fk, f := cache.join(key, url, true)
	cache.mtx.Unlock()

	cache.logger.Debugf("refreshing %s from %s", key, url)

	return cache.wait(ctx, fk, f)
}

// Invalidate removes the entry for key and revokes its handle. A fetch
// in progress for the key is aborted and its waiters get ErrInvalidated.
func (cache *Cache) Invalidate(key string) {
	cache.mtx.Lock()

	var toRevoke []objecturl.Handle

	if entry, ok := cache.entries[key]; ok {
		toRevoke = append(toRevoke, entry.Handle)
		delete(cache.entries, key)
	}

	for _, refresh := range []bool{false, true} {
		fk := flightKey{key: key, refresh: refresh}

		if f, ok := cache.flights[fk]; ok {
			f.cancel(ErrInvalidated)
			delete(cache.flights, fk)
		}
	}

	cache.mtx.Unlock()

	cache.revoke(toRevoke)
}

// InvalidateAll drops every entry, aborts every fetch in progress
// and notifies the OnInvalidateAll subscribers.
func (cache *Cache) InvalidateAll() {
	cache.mtx.Lock()

	toRevoke := make([]objecturl.Handle, 0, len(cache.entries))

	for _, entry := range cache.entries {
		toRevoke = append(toRevoke, entry.Handle)
	}

	clear(cache.entries)

	for fk, f := range cache.flights {
		f.cancel(ErrInvalidated)
		delete(cache.flights, fk)
	}

	subscribers := make([]func(), 0, len(cache.subscribers))

	for _, subscriber := range cache.subscribers {
		subscribers = append(subscribers, subscriber)
	}

	cache.mtx.Unlock()

	cache.revoke(toRevoke)

	cache.logger.Infof("invalidated all %d cache entries", len(toRevoke))

	for _, subscriber := range subscribers {
		subscriber()
	}
}

// OnInvalidateAll registers a callback that runs after each InvalidateAll.
func (cache *Cache) OnInvalidateAll(callback func()) (unsubscribe func()) {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	cache.subscriberSeq++
	id := cache.subscriberSeq
	cache.subscribers[id] = callback

	return func() {
		cache.mtx.Lock()
		defer cache.mtx.Unlock()

		delete(cache.subscribers, id)
	}
}

func (cache *Cache) Len() int {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	return len(cache.entries)
}

func (cache *Cache) Capacity() int {
	return cache.capacity
}

// Lookup returns a copy of the entry for key without touching it.
func (cache *Cache) Lookup(key string) (Entry, bool) {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	entry, ok := cache.entries[key]
	if !ok {
		return Entry{}, false
	}

	return *entry, true
}

func (cache *Cache) touch(entry *Entry) {
	cache.seq++

	entry.LastUsed = cache.now()
	entry.seq = cache.seq
}

func (cache *Cache) fetch(ctx context.Context, url string) (objecturl.Handle, int64, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return objecturl.Handle{}, 0, fmt.Errorf("%w: %w", ErrResourceFetchFailed, err)
	}

	// Always go to the network, we're the cache here
	request.Header.Set("Cache-Control", "no-store")

	response, err := cache.httpClient.Do(request)
	if err != nil {
		return objecturl.Handle{}, 0, fmt.Errorf("%w: %w", ErrResourceFetchFailed, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return objecturl.Handle{}, 0, fmt.Errorf("%w: unexpected HTTP %d when fetching %s",
			ErrResourceFetchFailed, response.StatusCode, url)
	}

	handle, size, err := cache.registry.Create(ctx, response.Body, response.Header.Get("Content-Type"))
	if err != nil {
		return objecturl.Handle{}, 0, fmt.Errorf("%w: %w", ErrResourceFetchFailed, err)
	}

	cache.metrics.fetchedBytesCounter.Add(context.Background(), size)

	cache.logger.Debugf("fetched %s (%s)", url, humanize.IBytes(uint64(size)))

	return handle, size, nil
}

func (cache *Cache) revoke(handles []objecturl.Handle) {
	for _, handle := range handles {
		cache.registry.Revoke(context.Background(), handle)
	}
}
