package imagecache

import (
	"cmp"
	"math"
	"slices"

	"github.com/cirruslabs/imagecache/internal/objecturl"
	"github.com/samber/lo"
)

// evictionRatio is the share of the capacity evicted at once
// when the cache overflows.
const evictionRatio = 0.10

// evict removes the least recently used entries when the cache is over
// capacity and returns their handles for revocation.
// Must be called with cache.mtx held.
func (cache *Cache) evict() []objecturl.Handle {
	if len(cache.entries) <= cache.capacity {
		return nil
	}

	toEvict := max(int(math.Ceil(float64(cache.capacity)*evictionRatio)), 1)

	keys := lo.Keys(cache.entries)

	slices.SortFunc(keys, func(a, b string) int {
		entryA, entryB := cache.entries[a], cache.entries[b]

		if c := entryA.LastUsed.Compare(entryB.LastUsed); c != 0 {
			return c
		}

		return cmp.Compare(entryA.seq, entryB.seq)
	})

	evicted := make([]objecturl.Handle, 0, toEvict)

	for _, key := range keys[:min(toEvict, len(keys))] {
		evicted = append(evicted, cache.entries[key].Handle)
		delete(cache.entries, key)
	}

	cache.count(operationEviction, len(evicted))

	cache.logger.Debugf("evicted %d least recently used entries", len(evicted))

	return evicted
}
