package tact

import (
	"encoding/binary"
	"fmt"
)

const encodingHeaderSize = 2 + 1 + 1 + 1 + 2 + 2 + 4 + 4 + 1 + 4 // magic..espec_page_size

type encodingHeader struct {
	hashSizeCKey  uint8
	pageSizeCKey  uint16
	pageCountCKey uint32
	especPageSize uint32
}

// EncodingFile maps content keys to an encoded key: when a CKey's record
// lists more than one EKey, the first is chosen (spec.md §4.6); when the
// same CKey appears in more than one page, the record encountered last
// wins. The EKey-indexed half of the encoding table is never consulted
// (non-goal).
type EncodingFile struct {
	ckeyToEKey map[CKey]EKey
}

// ParseEncoding decodes a BLTE-wrapped encoding table blob.
func ParseEncoding(blteData []byte) (*EncodingFile, error) {
	decoded, err := DecodeBLTE(blteData)
	if err != nil {
		return nil, err
	}
	return parseEncodingBody(decoded)
}

func parseEncodingBody(data []byte) (*EncodingFile, error) {
	if len(data) < 2 || string(data[0:2]) != "EN" {
		return nil, fmt.Errorf("%w: missing EN magic on encoding table", ErrParse)
	}
	if len(data) < encodingHeaderSize {
		return nil, fmt.Errorf("%w: truncated encoding table header", ErrParse)
	}

	// data[2] version, data[4] hash_size_ekey, data[7:9] page_size_ekey,
	// data[13:17] page_count_ekey are parsed implicitly by the offsets
	// below and otherwise unused (the EKey-indexed half of the table is
	// never consulted).
	h := encodingHeader{
		hashSizeCKey:  data[3],
		pageSizeCKey:  binary.BigEndian.Uint16(data[5:7]),
		pageCountCKey: binary.BigEndian.Uint32(data[9:13]),
		especPageSize: binary.BigEndian.Uint32(data[18:22]),
	}
	if data[17] != 0 {
		return nil, fmt.Errorf("%w: encoding table padding byte is non-zero", ErrParse)
	}

	pageStartCKey := int(h.especPageSize) + int(h.pageCountCKey)*(int(h.hashSizeCKey)+16)
	pageSizeCKey := int(h.pageSizeCKey) * 1024

	out := &EncodingFile{ckeyToEKey: make(map[CKey]EKey)}

	// pageStartCKey is relative to the first byte after the header (the
	// ESpec block and the CKey page index sit between them and are
	// never otherwise consulted).
	for i := uint32(0); i < h.pageCountCKey; i++ {
		offs := encodingHeaderSize + pageStartCKey + pageSizeCKey*int(i)
		end := offs + pageSizeCKey
		if offs < 0 || end > len(data) {
			return nil, fmt.Errorf("%w: encoding table page %d out of bounds", ErrParse, i)
		}
		page := data[offs:end]

		pos := 0
		for pos < len(page) {
			if pos+2 > len(page) {
				break
			}
			ekeyCount := int(page[pos])
			// page[pos+1] is a padding byte.
			if ekeyCount == 0 {
				break
			}
			recEnd := pos + 2 + 4 + keyLen + ekeyCount*keyLen
			if recEnd > len(page) {
				break
			}
			// size field is a 40-bit value on the wire; the first byte
			// (the high 8 bits) is discarded, leaving a 32-bit size we
			// don't otherwise use.
			var ckey CKey
			copy(ckey[:], page[pos+2+4:pos+2+4+keyLen])

			var ekey EKey
			copy(ekey[:], page[pos+2+4+keyLen:pos+2+4+keyLen+keyLen])

			out.ckeyToEKey[ckey] = ekey

			pos = recEnd
		}
	}

	return out, nil
}

// EKeyForCKey returns the EKey recorded for ckey (the last page record
// seen, if ckey was recorded more than once).
func (e *EncodingFile) EKeyForCKey(ckey CKey) (EKey, bool) {
	ek, ok := e.ckeyToEKey[ckey]
	return ek, ok
}
