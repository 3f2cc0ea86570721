// Package sheepfile implements the repack container (C10/C11): a
// segmented, append-only set of data{N}.baa files plus an index.shp
// lookup table, so downstream consumers can read resolved assets back
// without ever touching the network again (spec.md §3, §4.10, §4.11,
// §6).
package sheepfile

import (
	"encoding/binary"
	"fmt"
)

// RepackEntry is one resolved asset's location inside the repack
// container: a byte range inside segment file data{SegmentIndex}.baa.
type RepackEntry struct {
	FileID       uint32
	NameHash     uint64
	SegmentIndex uint16
	StartBytes   uint32
	SizeBytes    uint32
}

// entryWireSize is the little-endian on-disk size of one RepackEntry:
// file_id(4) + name_hash(8) + segment_index(2) + start_bytes(4) +
// size_bytes(4) = 22 bytes (spec.md §6).
const entryWireSize = 4 + 8 + 2 + 4 + 4

// segmentFileName returns the file name of segment index idx.
func segmentFileName(idx uint16) string {
	return fmt.Sprintf("data%d.baa", idx)
}

func encodeEntry(e RepackEntry) []byte {
	b := make([]byte, entryWireSize)
	binary.LittleEndian.PutUint32(b[0:4], e.FileID)
	binary.LittleEndian.PutUint64(b[4:12], e.NameHash)
	binary.LittleEndian.PutUint16(b[12:14], e.SegmentIndex)
	binary.LittleEndian.PutUint32(b[14:18], e.StartBytes)
	binary.LittleEndian.PutUint32(b[18:22], e.SizeBytes)
	return b
}

func decodeEntry(b []byte) RepackEntry {
	return RepackEntry{
		FileID:       binary.LittleEndian.Uint32(b[0:4]),
		NameHash:     binary.LittleEndian.Uint64(b[4:12]),
		SegmentIndex: binary.LittleEndian.Uint16(b[12:14]),
		StartBytes:   binary.LittleEndian.Uint32(b[14:18]),
		SizeBytes:    binary.LittleEndian.Uint32(b[18:22]),
	}
}

// EncodeIndex serializes entries as an index.shp blob: num_entries:u32
// followed by each entry in order, all little-endian.
func EncodeIndex(entries []RepackEntry) []byte {
	out := make([]byte, 4+len(entries)*entryWireSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(entries)))
	off := 4
	for _, e := range entries {
		copy(out[off:off+entryWireSize], encodeEntry(e))
		off += entryWireSize
	}
	return out
}

// DecodeIndex parses an index.shp blob back into its entry list.
func DecodeIndex(data []byte) ([]RepackEntry, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("sheepfile: index too short for header")
	}
	numEntries := binary.LittleEndian.Uint32(data[0:4])
	want := 4 + int(numEntries)*entryWireSize
	if len(data) != want {
		return nil, fmt.Errorf("sheepfile: index is %d bytes, want %d for %d entries", len(data), want, numEntries)
	}
	entries := make([]RepackEntry, numEntries)
	off := 4
	for i := range entries {
		entries[i] = decodeEntry(data[off : off+entryWireSize])
		off += entryWireSize
	}
	return entries, nil
}
