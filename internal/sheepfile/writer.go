package sheepfile

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"
)

// MaxSegmentBytes bounds the size of any single segment file. A payload
// larger than this cannot fit any segment; Append rejects it rather than
// silently violating the cap (spec.md §9 "oversize payloads").
const MaxSegmentBytes = 256_000_000

// Writer appends decoded payloads into a sequence of segment files under
// dir, rolling over to a new segment whenever the current one would
// otherwise exceed MaxSegmentBytes. It exclusively owns the current
// segment's file handle and only ever appends (spec.md §3 "ownership &
// lifecycle").
type Writer struct {
	dir          string
	segmentIndex uint16
	segmentFile  *os.File
	segmentSize  int64
	entries      []RepackEntry
}

// NewWriter creates dir (if needed) and opens the first segment file.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sheepfile: creating repack dir: %w", err)
	}
	w := &Writer{dir: dir}
	if err := w.openSegment(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openSegment(idx uint16) error {
	path := filepath.Join(w.dir, segmentFileName(idx))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sheepfile: opening segment %s: %w", path, err)
	}
	w.segmentFile = f
	w.segmentIndex = idx
	w.segmentSize = 0
	return nil
}

// Append writes payload to the current (or, if it would overflow the
// cap, the next) segment and records a RepackEntry for it. A payload
// exactly MaxSegmentBytes long starts a new segment iff the current one
// is non-empty (spec.md §8 boundary behavior); a payload itself larger
// than MaxSegmentBytes is rejected outright.
func (w *Writer) Append(fileID uint32, nameHash uint64, payload []byte) (RepackEntry, error) {
	if int64(len(payload)) > MaxSegmentBytes {
		return RepackEntry{}, fmt.Errorf("sheepfile: payload of %d bytes exceeds max segment size %d", len(payload), MaxSegmentBytes)
	}
	if w.segmentSize > 0 && w.segmentSize+int64(len(payload)) > MaxSegmentBytes {
		if err := w.segmentFile.Close(); err != nil {
			return RepackEntry{}, fmt.Errorf("sheepfile: closing segment %d: %w", w.segmentIndex, err)
		}
		if err := w.openSegment(w.segmentIndex + 1); err != nil {
			return RepackEntry{}, err
		}
	}

	start := w.segmentSize
	n, err := w.segmentFile.Write(payload)
	if err != nil {
		return RepackEntry{}, fmt.Errorf("sheepfile: writing to segment %d: %w", w.segmentIndex, err)
	}
	w.segmentSize += int64(n)

	entry := RepackEntry{
		FileID:       fileID,
		NameHash:     nameHash,
		SegmentIndex: w.segmentIndex,
		StartBytes:   uint32(start),
		SizeBytes:    uint32(n),
	}
	w.entries = append(w.entries, entry)
	return entry, nil
}

// Finish closes the current segment and writes index.shp, in that order
// (spec.md §4.10 step 7). The writer must not be used afterward.
func (w *Writer) Finish() error {
	if err := w.segmentFile.Close(); err != nil {
		return fmt.Errorf("sheepfile: closing final segment: %w", err)
	}
	indexPath := filepath.Join(w.dir, "index.shp")
	if err := os.WriteFile(indexPath, EncodeIndex(w.entries), 0o644); err != nil {
		return fmt.Errorf("sheepfile: writing index: %w", err)
	}
	klog.Infof("wrote %d entries across %d segment(s) to %s", len(w.entries), w.segmentIndex+1, w.dir)
	return nil
}

// Entries returns the entries appended so far, in append order.
func (w *Writer) Entries() []RepackEntry {
	return w.entries
}
