// Package cdncache implements the content-addressed local mirror of CDN
// objects (spec.md §4.8, C8): whole-file and byte-range fetches backed
// by a cache_root directory tree, with an in-process hot cache fronting
// the small, repeatedly-read manifests/configs/encoding/root blobs.
package cdncache

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/sheepfetch/sheepfetch/internal/cdnhttp"
)

// Cache is a content-addressed local mirror of one CDN host's objects.
// A present local file is treated as authoritative; nothing is ever
// revalidated against the server (spec.md §4.8).
type Cache struct {
	root       string
	host       string
	pathPrefix string
	client     *http.Client
	hot        *hotCache
	group      singleflight.Group
}

// New returns a Cache rooted at root, addressing objects at host under
// pathPrefix (the CDN config row's Path field).
func New(ctx context.Context, root, host, pathPrefix string) (*Cache, error) {
	hot, err := newHotCache(ctx)
	if err != nil {
		return nil, err
	}
	return &Cache{
		root:       root,
		host:       host,
		pathPrefix: pathPrefix,
		client:     cdnhttp.NewClient(),
		hot:        hot,
	}, nil
}

// SetHost points the cache at a CDN host and path prefix, as learned from
// the cdns manifest's region row during fetcher initialization. Safe to
// call once before any categorical (non-manifest) fetch.
func (c *Cache) SetHost(host, pathPrefix string) {
	c.host = host
	c.pathPrefix = pathPrefix
}

// FetchManifest fetches a patch-server manifest (versions/cdns), which
// lives outside the categorical CDN object layout.
func (c *Cache) FetchManifest(ctx context.Context, patchServer, product, name string) ([]byte, error) {
	hotCategory := "patch_server/" + product
	if data, ok := c.hot.get(hotCategory, name); ok {
		return data, nil
	}

	localPath := ManifestPath(c.root, product, name)
	if data, err := os.ReadFile(localPath); err == nil {
		c.hot.put(hotCategory, name, data)
		return data, nil
	}

	sfKey := "manifest/" + product + "/" + name
	v, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		url := ManifestURL(patchServer, product, name)
		klog.V(2).Infof("fetching manifest %s", url)
		body, err := cdnhttp.GetWhole(ctx, c.client, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
		}
		if err := atomicWrite(localPath, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	data := v.([]byte)
	c.hot.put(hotCategory, name, data)
	return data, nil
}

// FetchWhole returns the full contents of a CDN object, materializing it
// locally on first fetch. Small/frequent objects are additionally
// served out of the in-process hot cache.
func (c *Cache) FetchWhole(ctx context.Context, category, key string) ([]byte, error) {
	if data, ok := c.hot.get(category, key); ok {
		return data, nil
	}

	localPath := ObjectPath(c.root, category, key)
	if data, err := os.ReadFile(localPath); err == nil {
		c.hot.put(category, key, data)
		return data, nil
	}

	sfKey := "whole/" + category + "/" + key
	v, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		url := ObjectURL(c.host, c.pathPrefix, category, key, "")
		klog.V(5).Infof("fetch_whole miss: %s", url)
		body, err := cdnhttp.GetWhole(ctx, c.client, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
		}
		if err := atomicWrite(localPath, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	data := v.([]byte)
	c.hot.put(category, key, data)
	return data, nil
}

// FetchIndex fetches an archive's `.index` sibling object, a small
// whole-file fetch addressed with the `.index` URL suffix.
func (c *Cache) FetchIndex(ctx context.Context, archiveKey string) ([]byte, error) {
	localPath := ObjectPath(c.root, "data", archiveKey+".index")
	if data, err := os.ReadFile(localPath); err == nil {
		return data, nil
	}

	sfKey := "index/" + archiveKey
	v, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		url := ObjectURL(c.host, c.pathPrefix, "data", archiveKey, ".index")
		klog.V(5).Infof("fetching archive index %s", url)
		body, err := cdnhttp.GetWhole(ctx, c.client, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
		}
		if err := atomicWrite(localPath, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// FetchRange returns bytes in the half-open range [start, end) of a CDN
// object. If the whole object is already materialized locally, it is
// read directly; otherwise a sidecar segment cache under
// {whole_path}.segments/{start}_{end} is consulted, and on miss an HTTP
// Range request fetches and materializes it (spec.md §4.8). This is the
// path archive extraction always takes — downloading a 256 MiB archive
// whole to read one 8 KiB asset is exactly the cost this cache exists to
// avoid.
func (c *Cache) FetchRange(ctx context.Context, category, key string, start, end int64) ([]byte, error) {
	wholePath := ObjectPath(c.root, category, key)
	if f, err := os.Open(wholePath); err == nil {
		defer f.Close()
		buf := make([]byte, end-start)
		if _, err := f.ReadAt(buf, start); err != nil {
			return nil, fmt.Errorf("%w: reading range from whole-file cache hit: %v", ErrIO, err)
		}
		return buf, nil
	}

	sidecarPath := filepath.Join(wholePath+".segments", fmt.Sprintf("%d_%d", start, end))
	if data, err := os.ReadFile(sidecarPath); err == nil {
		return data, nil
	}

	sfKey := fmt.Sprintf("range/%s/%s/%d-%d", category, key, start, end)
	v, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		url := ObjectURL(c.host, c.pathPrefix, category, key, "")
		klog.V(5).Infof("fetch_range miss: %s [%d,%d) (%s)", url, start, end, humanize.Bytes(uint64(end-start)))
		body, err := cdnhttp.GetRange(ctx, c.client, url, start, end)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
		}
		if err := atomicWrite(sidecarPath, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// CoalescedEntry is the subset of an archive index entry FetchCoalesced
// needs to compute the spanning range and caller-side offsets.
type CoalescedEntry struct {
	OffsetBytes uint32
	SizeBytes   uint32
}

// FetchCoalesced fetches the smallest single byte range of archiveKey
// covering every entry in entries, in one request. The caller indexes
// into the returned buffer at entry.OffsetBytes - absoluteOffset. This
// is the hot path for repack: many small extractions from the same
// archive become one range request (spec.md §4.8/§4.10).
func (c *Cache) FetchCoalesced(ctx context.Context, archiveKey string, entries []CoalescedEntry) (absoluteOffset int64, buf []byte, err error) {
	if len(entries) == 0 {
		return 0, nil, fmt.Errorf("fetch_coalesced: no entries")
	}
	min := int64(entries[0].OffsetBytes)
	max := int64(entries[0].OffsetBytes) + int64(entries[0].SizeBytes)
	for _, e := range entries[1:] {
		start := int64(e.OffsetBytes)
		end := start + int64(e.SizeBytes)
		if start < min {
			min = start
		}
		if end > max {
			max = end
		}
	}
	buf, err = c.FetchRange(ctx, "data", archiveKey, min, max)
	if err != nil {
		return 0, nil, err
	}
	return min, buf, nil
}
