package tact

import (
	"encoding/binary"
	"fmt"
)

const (
	archiveIndexEntrySize = keyLen + 4 + 4 // ekey, size_bytes, offset_bytes
	archiveFooterSize     = 0x24           // footer occupies the last 36 bytes of the blob
)

// ArchiveIndexEntry describes one object's location inside the archive
// blob its parent ArchiveIndex was parsed from: a half-open byte range
// [OffsetBytes, OffsetBytes+SizeBytes).
type ArchiveIndexEntry struct {
	EKey        EKey
	SizeBytes   uint32
	OffsetBytes uint32
}

// ByteRange returns the half-open [start, end) byte range this entry
// occupies inside its archive.
func (e ArchiveIndexEntry) ByteRange() (start, end int64) {
	start = int64(e.OffsetBytes)
	end = start + int64(e.SizeBytes)
	return
}

// ArchiveIndex maps every EKey stored in one CDN archive blob to its
// byte range within that blob.
type ArchiveIndex struct {
	Key     string
	Entries map[EKey]ArchiveIndexEntry
}

type archiveIndexFooter struct {
	tocHash      [keyLen]byte
	version      uint8
	blockSizeKB  uint8
	offsetBytes  uint8
	sizeBytes    uint8
	keySize      uint8
	checksumSize uint8
	numFiles     uint32
}

// ParseArchiveIndex parses a `.index` blob for the archive named key.
// The footer is the last 0x24 bytes of data; it is preceded by a
// sequence of fixed-size blocks (block_size_kb KiB each) of sequential
// entries, each block terminated by an all-zero EKey sentinel or by
// running out of room for another full entry.
func ParseArchiveIndex(key string, data []byte) (*ArchiveIndex, error) {
	if len(data) < archiveFooterSize {
		return nil, fmt.Errorf("%w: archive index too short for footer", ErrParse)
	}
	footer, err := parseArchiveFooter(data[len(data)-archiveFooterSize:])
	if err != nil {
		return nil, err
	}

	blockSize := int(footer.blockSizeKB) << 10
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: archive index block size is zero", ErrParse)
	}

	entries := make(map[EKey]ArchiveIndexEntry, footer.numFiles)
	footerOffset := len(data) - archiveFooterSize

	var numFiles uint32
	blockStart := 0
	for numFiles < footer.numFiles {
		blockEnd := blockStart + blockSize
		if blockEnd > footerOffset {
			return nil, fmt.Errorf("%w: archive index block boundary runs past footer", ErrParse)
		}
		block := data[blockStart:blockEnd]

		off := 0
		for off+archiveIndexEntrySize <= len(block) {
			entry := parseArchiveIndexEntry(block[off : off+archiveIndexEntrySize])
			off += archiveIndexEntrySize
			if entry.EKey.IsZero() {
				break
			}
			entries[entry.EKey] = entry
			numFiles++
		}

		blockStart = blockEnd
	}

	return &ArchiveIndex{Key: key, Entries: entries}, nil
}

func parseArchiveIndexEntry(b []byte) ArchiveIndexEntry {
	var ekey EKey
	copy(ekey[:], b[0:keyLen])
	return ArchiveIndexEntry{
		EKey:        ekey,
		SizeBytes:   binary.BigEndian.Uint32(b[keyLen : keyLen+4]),
		OffsetBytes: binary.BigEndian.Uint32(b[keyLen+4 : keyLen+8]),
	}
}

// parseArchiveFooter reads the 36-byte footer: toc_hash[16], version[1],
// 2 reserved bytes, block_size_kb[1], offset_bytes[1], size_bytes[1],
// key_size[1], checksum_size[1], num_files[4], and an 8-byte trailing
// footer checksum that is read implicitly (never separately verified,
// per the non-goal on checksum verification).
func parseArchiveFooter(b []byte) (archiveIndexFooter, error) {
	var f archiveIndexFooter
	if len(b) != archiveFooterSize {
		return f, fmt.Errorf("%w: footer slice is %d bytes, want %d", ErrParse, len(b), archiveFooterSize)
	}
	copy(f.tocHash[:], b[0:16])
	f.version = b[16]
	// b[17], b[18] reserved
	f.blockSizeKB = b[19]
	f.offsetBytes = b[20]
	f.sizeBytes = b[21]
	f.keySize = b[22]
	f.checksumSize = b[23]
	f.numFiles = binary.BigEndian.Uint32(b[24:28])
	// b[28:36] is the trailing footer checksum; unverified.

	if f.version != 1 {
		return f, fmt.Errorf("%w: archive index version %d, want 1", ErrParse, f.version)
	}
	if f.blockSizeKB != 4 {
		return f, fmt.Errorf("%w: archive index block_size_kb %d, want 4", ErrParse, f.blockSizeKB)
	}
	if f.offsetBytes != 4 {
		return f, fmt.Errorf("%w: archive index offset_bytes %d, want 4", ErrParse, f.offsetBytes)
	}
	if f.sizeBytes != 4 {
		return f, fmt.Errorf("%w: archive index size_bytes %d, want 4", ErrParse, f.sizeBytes)
	}
	if f.keySize != keyLen {
		return f, fmt.Errorf("%w: archive index key_size %d, want %d", ErrParse, f.keySize, keyLen)
	}
	if f.checksumSize != 8 {
		return f, fmt.Errorf("%w: archive index checksum_size %d, want 8", ErrParse, f.checksumSize)
	}
	return f, nil
}

// GetEntry looks up an EKey's location, if present in this archive.
func (a *ArchiveIndex) GetEntry(ekey EKey) (ArchiveIndexEntry, bool) {
	e, ok := a.Entries[ekey]
	return e, ok
}
