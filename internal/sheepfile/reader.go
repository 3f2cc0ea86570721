package sheepfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sheepfetch/sheepfetch/internal/tact"
)

// Reader serves resolved assets out of a repack container written by
// Writer, without any network access (spec.md §4.11).
type Reader struct {
	dir      string
	entries  []RepackEntry
	byID     map[uint32]RepackEntry
	byName   map[uint64]RepackEntry
	mu       sync.Mutex
	segments map[uint16]*os.File
}

// Open reads and parses dir/index.shp, building the file-id and
// name-hash lookup maps.
func Open(dir string) (*Reader, error) {
	data, err := os.ReadFile(filepath.Join(dir, "index.shp"))
	if err != nil {
		return nil, fmt.Errorf("sheepfile: reading index: %w", err)
	}
	entries, err := DecodeIndex(data)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		dir:      dir,
		entries:  entries,
		byID:     make(map[uint32]RepackEntry, len(entries)),
		byName:   make(map[uint64]RepackEntry, len(entries)),
		segments: make(map[uint16]*os.File),
	}
	for _, e := range entries {
		r.byID[e.FileID] = e
		if e.NameHash != 0 {
			r.byName[e.NameHash] = e
		}
	}
	return r, nil
}

// EntryForID returns the repack entry for a FileDataID.
func (r *Reader) EntryForID(fileID uint32) (RepackEntry, bool) {
	e, ok := r.byID[fileID]
	return e, ok
}

// EntryForName normalizes and hashes name (tact.NameHash), then returns
// the repack entry recorded for it.
func (r *Reader) EntryForName(name string) (RepackEntry, bool) {
	e, ok := r.byName[tact.NameHash(name)]
	return e, ok
}

// Entries returns every entry in the container, in index order.
func (r *Reader) Entries() []RepackEntry {
	return r.entries
}

func (r *Reader) segmentFile(idx uint16) (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.segments[idx]; ok {
		return f, nil
	}
	f, err := os.Open(filepath.Join(r.dir, segmentFileName(idx)))
	if err != nil {
		return nil, fmt.Errorf("sheepfile: opening segment %d: %w", idx, err)
	}
	r.segments[idx] = f
	return f, nil
}

// Read returns the exact bytes appended for entry.
func (r *Reader) Read(entry RepackEntry) ([]byte, error) {
	f, err := r.segmentFile(entry.SegmentIndex)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, entry.SizeBytes)
	if _, err := f.ReadAt(buf, int64(entry.StartBytes)); err != nil {
		return nil, fmt.Errorf("sheepfile: reading entry from segment %d: %w", entry.SegmentIndex, err)
	}
	return buf, nil
}

// ReadByID resolves and reads a FileDataID.
func (r *Reader) ReadByID(fileID uint32) ([]byte, error) {
	e, ok := r.EntryForID(fileID)
	if !ok {
		return nil, &tact.MissingFileIDError{FileID: fileID}
	}
	return r.Read(e)
}

// ReadByName resolves and reads a path.
func (r *Reader) ReadByName(name string) ([]byte, error) {
	e, ok := r.EntryForName(name)
	if !ok {
		return nil, &tact.MissingFileNameError{Name: name}
	}
	return r.Read(e)
}

// Close closes every open segment file handle.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, f := range r.segments {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
