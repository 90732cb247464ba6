package imagecache

import "errors"

var (
	// ErrResourceFetchFailed is returned when the payload couldn't be fetched or
	// materialized. Callers are expected to fall back to the raw URL.
	ErrResourceFetchFailed = errors.New("resource fetch failed")

	// ErrInvalidated is returned to the waiters of a fetch whose key got
	// invalidated before the fetch has completed.
	ErrInvalidated = errors.New("cache key was invalidated while being fetched")
)
