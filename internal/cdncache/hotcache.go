package cdncache

import (
	"context"
	"errors"

	"github.com/allegro/bigcache/v3"
)

// hotCache fronts the on-disk cache for the handful of small, repeatedly
// re-read objects: manifests, configs, and the encoding/root blobs. Large
// archive data bypasses it entirely — it is already range-cached on
// disk, and a 256 MiB archive has no business living in a process-memory
// cache sized for kilobyte objects.
type hotCache struct {
	cache *bigcache.BigCache
}

func newHotCache(ctx context.Context) (*hotCache, error) {
	cfg := bigcache.DefaultConfig(0) // no expiry: these objects are immutable for the life of a run
	cfg.HardMaxCacheSize = 128       // MB
	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &hotCache{cache: c}, nil
}

func formatHotKey(category, key string) string {
	return category + "/" + key
}

func (h *hotCache) get(category, key string) ([]byte, bool) {
	if h == nil {
		return nil, false
	}
	v, err := h.cache.Get(formatHotKey(category, key))
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			// A hot-cache failure degrades to a disk/network fetch; it is
			// never fatal.
			return nil, false
		}
		return nil, false
	}
	return v, true
}

func (h *hotCache) put(category, key string, data []byte) {
	if h == nil {
		return
	}
	_ = h.cache.Set(formatHotKey(category, key), data)
}
