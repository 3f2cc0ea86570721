package sheepfile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"k8s.io/klog/v2"

	"github.com/sheepfetch/sheepfetch/internal/cdncache"
	"github.com/sheepfetch/sheepfetch/internal/fetcher"
	"github.com/sheepfetch/sheepfetch/internal/tact"
)

// job is one file id pending resolution/decode/append, tied back to the
// fetcher (and therefore the CDN cache) that can answer for it.
type job struct {
	fileID   uint32
	nameHash uint64
	resolved *fetcher.ResolvedEntry
	source   *fetcher.Fetcher
	payload  []byte
}

// Build runs the repack algorithm of spec.md §4.10 over one or more
// fetchers (multiple products may be merged into one container) and
// writes the result to dir. Sources are processed in order; a file id
// already resolved by an earlier source is skipped in every later one
// (first-write-wins cross-source dedup). An id that an earlier source
// resolves but whose payload turns out to be encrypted is not retried
// from a later source.
func Build(ctx context.Context, dir string, sources []*fetcher.Fetcher) (*Writer, error) {
	jobs, err := resolveJobs(sources)
	if err != nil {
		return nil, err
	}
	if err := decodeJobs(ctx, jobs); err != nil {
		return nil, err
	}

	// Deterministic, monotone index ordering (spec.md §4.10 step 4).
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].fileID < jobs[j].fileID })

	w, err := NewWriter(dir)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.payload == nil {
			continue // skipped: encrypted, already logged
		}
		if _, err := w.Append(j.fileID, j.nameHash, j.payload); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// resolveJobs walks every source's root table, applying cross-source
// dedup and per-id resolution; a missing link is logged and the id is
// dropped, never fatal (spec.md §4.10 step 2, §7).
func resolveJobs(sources []*fetcher.Fetcher) ([]*job, error) {
	seen := make(map[uint32]bool)
	var jobs []*job
	for _, src := range sources {
		ids := src.FileIDs()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, fid := range ids {
			if seen[fid] {
				continue
			}
			resolved, err := src.ResolveByID(fid)
			if err != nil {
				klog.Warningf("skipping file id %d: %v", fid, err)
				continue
			}
			seen[fid] = true
			jobs = append(jobs, &job{fileID: fid, nameHash: resolved.NameHash, resolved: resolved, source: src})
		}
	}
	return jobs, nil
}

// decodeJobs groups resolved jobs by (source, archive) and issues one
// coalesced range fetch per group, then BLTE-decodes each entry out of
// the shared buffer (spec.md §4.10 steps 3 and 5).
func decodeJobs(ctx context.Context, jobs []*job) error {
	type groupKey struct {
		source  *fetcher.Fetcher
		archive string
	}
	groups := make(map[groupKey][]*job)
	var order []groupKey
	for _, j := range jobs {
		k := groupKey{source: j.source, archive: j.resolved.Archive.Key}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], j)
	}

	progress := mpb.New(mpb.WithWidth(48))
	bar := progress.AddBar(int64(len(order)),
		mpb.PrependDecorators(decor.Name("repack: coalescing archives", decor.WC{W: 28})),
		mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
	)
	defer progress.Wait()

	for _, k := range order {
		group := groups[k]
		entries := make([]cdncache.CoalescedEntry, len(group))
		for i, j := range group {
			entries[i] = cdncache.CoalescedEntry{OffsetBytes: j.resolved.Entry.OffsetBytes, SizeBytes: j.resolved.Entry.SizeBytes}
		}

		absOffset, buf, err := k.source.Cache().FetchCoalesced(ctx, k.archive, entries)
		if err != nil {
			return fmt.Errorf("repack: coalesced fetch of archive %s: %w", k.archive, err)
		}
		klog.V(2).Infof("archive %s: coalesced %d entries into %s", k.archive, len(group), humanize.Bytes(uint64(len(buf))))

		for _, j := range group {
			start := int64(j.resolved.Entry.OffsetBytes) - absOffset
			end := start + int64(j.resolved.Entry.SizeBytes)
			raw := buf[start:end]

			decoded, err := tact.DecodeBLTE(raw)
			if err != nil {
				if errors.Is(err, tact.ErrUnsupportedEncryptedData) {
					klog.Warningf("skipping file id %d: %v", j.fileID, err)
					continue
				}
				return fmt.Errorf("repack: decoding file id %d: %w", j.fileID, err)
			}
			j.payload = decoded
		}
		bar.Increment()
	}
	return nil
}
