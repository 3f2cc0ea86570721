// Package fetcher orchestrates the manifest, config, encoding, archive
// index, and root table parsers (internal/tact) over a CDN cache into a
// resolvable view of one product/region's current build (spec.md §4.9,
// C9): fetch_by_id and fetch_by_name walk the full key chain from a
// logical reference down to decoded bytes.
package fetcher

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/sheepfetch/sheepfetch/internal/cdncache"
	"github.com/sheepfetch/sheepfetch/internal/tact"
)

// Archive pairs a parsed archive index with the key it covers, so the
// fetcher can answer "which archive holds this EKey" without re-deriving
// the key from the index itself.
type Archive struct {
	Key   string
	Index *tact.ArchiveIndex
}

// Fetcher answers fetch_by_id/fetch_by_name against one product+region's
// current build. Once initialized, the encoding table, root table, and
// archive list are immutable and safe to share across goroutines
// (spec.md §5).
type Fetcher struct {
	cache *cdncache.Cache

	host       string
	pathPrefix string

	encoding *tact.EncodingFile
	root     *tact.RootFile
	archives []*Archive
}

// Config identifies the build to resolve: a patch-server base URL, a
// product identifier (e.g. "wow"), and a region row key (e.g. "us").
type Config struct {
	PatchServer string
	Product     string
	Region      string
	CacheRoot   string
}

// New runs the full initialization sequence of spec.md §4.9: fetch
// versions/cdns, pick the region row, fetch both configs, fetch and
// parse the encoding table, fetch and parse every archive index (in
// parallel), and resolve the root.
func New(ctx context.Context, cfg Config) (*Fetcher, error) {
	cache, err := cdncache.New(ctx, cfg.CacheRoot, "", "")
	if err != nil {
		return nil, err
	}

	versionsRaw, err := cache.FetchManifest(ctx, cfg.PatchServer, cfg.Product, "versions")
	if err != nil {
		return nil, fmt.Errorf("fetching versions manifest: %w", err)
	}
	versions, err := tact.ParseManifest(versionsRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing versions manifest: %w", err)
	}

	cdnsRaw, err := cache.FetchManifest(ctx, cfg.PatchServer, cfg.Product, "cdns")
	if err != nil {
		return nil, fmt.Errorf("fetching cdns manifest: %w", err)
	}
	cdns, err := tact.ParseManifest(cdnsRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing cdns manifest: %w", err)
	}

	cdnRow, ok := cdns.FindRow("Name", cfg.Region)
	if !ok {
		return nil, fmt.Errorf("no cdns row for region %q", cfg.Region)
	}
	cdnPath, _ := cdns.Field(cdnRow, "Path")
	hostsField, _ := cdns.Field(cdnRow, "Hosts")
	hosts := strings.Fields(hostsField)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("cdns row for region %q has no hosts", cfg.Region)
	}
	host := hosts[0] // first host is canonical (spec.md §4.9 step 2); mirroring is a non-goal.
	cache.SetHost(host, cdnPath)

	versionRow, ok := versions.FindRow("Region", cfg.Region)
	if !ok {
		return nil, fmt.Errorf("no versions row for region %q", cfg.Region)
	}
	buildConfigKey, _ := versions.Field(versionRow, "BuildConfig")
	cdnConfigKey, _ := versions.Field(versionRow, "CDNConfig")
	if buildConfigKey == "" || cdnConfigKey == "" {
		return nil, fmt.Errorf("versions row for region %q missing BuildConfig/CDNConfig", cfg.Region)
	}

	buildConfigRaw, err := cache.FetchWhole(ctx, "config", buildConfigKey)
	if err != nil {
		return nil, fmt.Errorf("fetching build config: %w", err)
	}
	buildConfig, err := tact.ParseConfig(buildConfigRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing build config: %w", err)
	}

	cdnConfigRaw, err := cache.FetchWhole(ctx, "config", cdnConfigKey)
	if err != nil {
		return nil, fmt.Errorf("fetching cdn config: %w", err)
	}
	cdnConfig, err := tact.ParseConfig(cdnConfigRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing cdn config: %w", err)
	}

	encodingEKey, ok := buildConfig.Second("encoding")
	if !ok {
		return nil, fmt.Errorf("build config 'encoding' entry has no second (EKey) element")
	}
	encodingRaw, err := cache.FetchWhole(ctx, "data", encodingEKey)
	if err != nil {
		return nil, fmt.Errorf("fetching encoding table: %w", err)
	}
	encoding, err := tact.ParseEncoding(encodingRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing encoding table: %w", err)
	}

	archiveKeys, _ := cdnConfig.Values("archives")
	archives, err := fetchArchiveIndices(ctx, cache, archiveKeys)
	if err != nil {
		return nil, err
	}

	rootCKeyStr, ok := buildConfig.First("root")
	if !ok {
		return nil, fmt.Errorf("build config has no 'root' entry")
	}
	rootCKey, err := tact.ParseCKey(rootCKeyStr)
	if err != nil {
		return nil, fmt.Errorf("parsing root CKey: %w", err)
	}
	rootEKey, ok := encoding.EKeyForCKey(rootCKey)
	if !ok {
		return nil, tact.ErrMissingCKey
	}
	rootRaw, err := cache.FetchWhole(ctx, "data", rootEKey.String())
	if err != nil {
		return nil, fmt.Errorf("fetching root table: %w", err)
	}
	root, err := tact.ParseRoot(rootRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing root table: %w", err)
	}

	klog.Infof("fetcher initialized: %d archives, %d resolvable file ids", len(archives), len(root.FileIDs()))

	return &Fetcher{
		cache:      cache,
		host:       host,
		pathPrefix: cdnPath,
		encoding:   encoding,
		root:       root,
		archives:   archives,
	}, nil
}

// fetchArchiveIndices fetches and parses every archive's .index blob in
// parallel (supplemented feature: promoted from the original's one-off
// Init subcommand into the normal initialization path, per SPEC_FULL
// §A.3.4), failing fast on the first error.
func fetchArchiveIndices(ctx context.Context, cache *cdncache.Cache, keys []string) ([]*Archive, error) {
	archives := make([]*Archive, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			raw, err := cache.FetchIndex(gctx, key)
			if err != nil {
				return fmt.Errorf("fetching archive index %s: %w", key, err)
			}
			idx, err := tact.ParseArchiveIndex(key, raw)
			if err != nil {
				return fmt.Errorf("parsing archive index %s: %w", key, err)
			}
			archives[i] = &Archive{Key: key, Index: idx}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return archives, nil
}

// ResolvedEntry is the fully-resolved location of one logical file: which
// archive holds it and the byte range within that archive.
type ResolvedEntry struct {
	Archive  *Archive
	Entry    tact.ArchiveIndexEntry
	NameHash uint64
}

// findArchiveEntry scans the in-memory archive list for ekey. Spec.md
// §4.9/§9: typical archive counts are in the low hundreds and each probe
// is an O(1) map lookup, so a linear scan over archives is negligible
// next to the I/O cost surrounding it.
func (f *Fetcher) findArchiveEntry(ekey tact.EKey) (*ResolvedEntry, bool) {
	for _, a := range f.archives {
		if e, ok := a.Index.GetEntry(ekey); ok {
			return &ResolvedEntry{Archive: a, Entry: e}, true
		}
	}
	return nil, false
}

// ResolveByID walks root -> CKey -> encoding -> EKey -> archive entry for
// a FileDataID, without fetching or decoding the bytes.
func (f *Fetcher) ResolveByID(fileID uint32) (*ResolvedEntry, error) {
	rootEntry, ok := f.root.EntryForFileID(fileID)
	if !ok {
		return nil, &tact.MissingFileIDError{FileID: fileID}
	}
	resolved, err := f.resolveCKey(rootEntry.CKey)
	if err != nil {
		return nil, err
	}
	resolved.NameHash = rootEntry.NameHash
	return resolved, nil
}

// ResolveByName walks root -> CKey -> encoding -> EKey -> archive entry
// for a normalized, hashed path.
func (f *Fetcher) ResolveByName(name string) (*ResolvedEntry, error) {
	ckey, ok := f.root.CKeyForName(name)
	if !ok {
		return nil, &tact.MissingFileNameError{Name: name}
	}
	return f.resolveCKey(ckey)
}

func (f *Fetcher) resolveCKey(ckey tact.CKey) (*ResolvedEntry, error) {
	ekey, ok := f.encoding.EKeyForCKey(ckey)
	if !ok {
		return nil, tact.ErrMissingCKey
	}
	resolved, ok := f.findArchiveEntry(ekey)
	if !ok {
		return nil, &tact.MissingArchiveEntryError{EKey: ekey}
	}
	return resolved, nil
}

// Fetch fetches and BLTE-decodes the bytes at a resolved location.
func (f *Fetcher) Fetch(ctx context.Context, r *ResolvedEntry) ([]byte, error) {
	start, end := r.Entry.ByteRange()
	raw, err := f.cache.FetchRange(ctx, "data", r.Archive.Key, start, end)
	if err != nil {
		return nil, err
	}
	return tact.DecodeBLTE(raw)
}

// FetchByID resolves and fetches a FileDataID's decoded bytes.
func (f *Fetcher) FetchByID(ctx context.Context, fileID uint32) ([]byte, error) {
	r, err := f.ResolveByID(fileID)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, r)
}

// FetchByName resolves and fetches a path's decoded bytes.
func (f *Fetcher) FetchByName(ctx context.Context, name string) ([]byte, error) {
	r, err := f.ResolveByName(name)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, r)
}

// FileIDs returns every FileDataID resolvable through the root table.
func (f *Fetcher) FileIDs() []uint32 {
	return f.root.FileIDs()
}

// Cache exposes the underlying CDN cache for callers (e.g. the repack
// writer) that need coalesced range fetches directly.
func (f *Fetcher) Cache() *cdncache.Cache {
	return f.cache
}
