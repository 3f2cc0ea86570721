package tact

import (
	"encoding/binary"
)

// RootFileEntry is one file's content key and name hash, as recorded in
// the root table.
type RootFileEntry struct {
	CKey     CKey
	NameHash uint64
}

// RootFile maps FileDataIDs and name hashes to the CKey recorded for
// them most recently in the root table's block order.
type RootFile struct {
	byFileID map[uint32]RootFileEntry
	byName   map[uint64]RootFileEntry
}

const rootBlockHeaderSize = 4 + 4 + 4 // num_files, content_flags, locale_flags

// ParseRoot decodes a BLTE-wrapped root table blob: a sequence of blocks
// each carrying a cumulative-with-gap FileDataID delta table and an
// entry table of equal length. A FileDataID present in multiple blocks
// keeps the value from the block encountered last.
func ParseRoot(blteData []byte) (*RootFile, error) {
	decoded, err := DecodeBLTE(blteData)
	if err != nil {
		return nil, err
	}
	return parseRootBody(decoded)
}

func parseRootBody(data []byte) (*RootFile, error) {
	out := &RootFile{
		byFileID: make(map[uint32]RootFileEntry),
		byName:   make(map[uint64]RootFileEntry),
	}

	pos := 0
	for pos+rootBlockHeaderSize <= len(data) {
		numFiles := binary.LittleEndian.Uint32(data[pos : pos+4])
		// content_flags at pos+4:pos+8, locale_flags at pos+8:pos+12 are
		// preserved on the wire but unused: the core always keeps
		// whichever variant appears last in the file.
		pos += rootBlockHeaderSize

		deltaTableSize := int(numFiles) * 4
		entryTableSize := int(numFiles) * (keyLen + 8)
		blockEnd := pos + deltaTableSize + entryTableSize
		if deltaTableSize < 0 || entryTableSize < 0 || blockEnd > len(data) || blockEnd < pos {
			break
		}

		deltas := data[pos : pos+deltaTableSize]
		entries := data[pos+deltaTableSize : blockEnd]

		var fileID uint32
		for i := uint32(0); i < numFiles; i++ {
			delta := binary.LittleEndian.Uint32(deltas[i*4 : i*4+4])
			fileID += delta

			entryOff := int(i) * (keyLen + 8)
			var ckey CKey
			copy(ckey[:], entries[entryOff:entryOff+keyLen])
			nameHash := binary.LittleEndian.Uint64(entries[entryOff+keyLen : entryOff+keyLen+8])

			entry := RootFileEntry{CKey: ckey, NameHash: nameHash}
			out.byFileID[fileID] = entry
			if nameHash != 0 {
				out.byName[nameHash] = entry
			}

			fileID++
		}

		pos = blockEnd
	}

	// Any bytes left once the remainder can no longer form a full block
	// are trailing padding, not an error; parsing simply stops there.
	return out, nil
}

// CKeyForFileID returns the CKey recorded for a FileDataID.
func (r *RootFile) CKeyForFileID(fileID uint32) (CKey, bool) {
	e, ok := r.byFileID[fileID]
	return e.CKey, ok
}

// EntryForFileID returns the full root table entry (CKey and name hash)
// recorded for a FileDataID.
func (r *RootFile) EntryForFileID(fileID uint32) (RootFileEntry, bool) {
	e, ok := r.byFileID[fileID]
	return e, ok
}

// CKeyForName normalizes and hashes name, then returns the CKey recorded
// for the resulting name hash.
func (r *RootFile) CKeyForName(name string) (CKey, bool) {
	e, ok := r.byName[NameHash(name)]
	return e.CKey, ok
}

// FileIDs returns every FileDataID resolvable in this root table. The
// returned slice is not sorted.
func (r *RootFile) FileIDs() []uint32 {
	ids := make([]uint32, 0, len(r.byFileID))
	for id := range r.byFileID {
		ids = append(ids, id)
	}
	return ids
}
