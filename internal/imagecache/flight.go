package imagecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/cirruslabs/imagecache/internal/objecturl"
)

type flightKey struct {
	key     string
	refresh bool
}

var errSuperseded = errors.New("superseded by a refresh from another URL")

// flight is a fetch in progress, shared by everyone waiting for the same key.
type flight struct {
	url     string
	done    chan struct{}
	waiters int
	cancel  context.CancelCauseFunc

	// set when a refresh from another URL took over the waiters
	next *flight

	// valid once done is closed
	handle objecturl.Handle
	err    error
}

// join attaches to the flight for key or starts a new one.
// Must be called with cache.mtx held.
func (cache *Cache) join(key string, url string, refresh bool) (flightKey, *flight) {
	fk := flightKey{key: key, refresh: refresh}

	previous, ok := cache.flights[fk]
	if ok && (!refresh || previous.url == url) {
		previous.waiters++

		return fk, previous
	}

	ctx, cancel := context.WithCancelCause(context.Background())

	f := &flight{
		url:     url,
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}

	// A refresh from a newer URL wins, the waiters of
	// the previous one are handed over to it
	if ok {
		f.waiters += previous.waiters
		previous.next = f
		previous.cancel(errSuperseded)
	}

	cache.flights[fk] = f

	go cache.fly(ctx, fk, f)

	return fk, f
}

func (cache *Cache) wait(ctx context.Context, fk flightKey, f *flight) (objecturl.Handle, error) {
	for {
		select {
		case <-f.done:
			if f.next == nil {
				return f.handle, f.err
			}

			f = f.next
		case <-ctx.Done():
			return objecturl.Handle{}, cache.leave(ctx, fk, f)
		}
	}
}

// leave detaches a waiter whose context is done from the flight
// it ended up waiting for.
func (cache *Cache) leave(ctx context.Context, fk flightKey, f *flight) error {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	for f.next != nil {
		f = f.next
	}

	f.waiters--

	// Nobody is interested anymore, abort the request
	if f.waiters == 0 {
		f.cancel(context.Canceled)

		if cache.flights[fk] == f {
			delete(cache.flights, fk)
		}
	}

	return ctx.Err()
}

func (cache *Cache) fly(ctx context.Context, fk flightKey, f *flight) {
	defer close(f.done)

	handle, size, err := cache.fetch(ctx, f.url)

	cache.mtx.Lock()

	if cache.flights[fk] == f {
		delete(cache.flights, fk)
	}

	var toRevoke []objecturl.Handle

	switch {
	case ctx.Err() != nil:
		// Invalidated or abandoned while in flight, never insert a late result
		if err == nil {
			toRevoke = append(toRevoke, handle)
		}

		switch cause := context.Cause(ctx); {
		case errors.Is(cause, ErrInvalidated):
			f.err = fmt.Errorf("%w: %s", ErrInvalidated, fk.key)
		case errors.Is(cause, errSuperseded):
			f.err = cause
		default:
			f.err = fmt.Errorf("%w: %w", ErrResourceFetchFailed, cause)
		}
	case err != nil:
		cache.count(operationFailure, 1)
		f.err = err
	default:
		if previous, ok := cache.entries[fk.key]; ok {
			toRevoke = append(toRevoke, previous.Handle)
		}

		entry := &Entry{
			Handle:    handle,
			Size:      size,
			SourceURL: f.url,
		}
		cache.touch(entry)
		cache.entries[fk.key] = entry

		toRevoke = append(toRevoke, cache.evict()...)

		f.handle = handle
	}

	cache.mtx.Unlock()

	f.cancel(nil)

	cache.revoke(toRevoke)

	if f.err != nil {
		cache.logger.Debugf("fetch of %s for %s failed: %v", f.url, fk.key, f.err)
	}
}
