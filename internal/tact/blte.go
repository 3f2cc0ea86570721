package tact

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

var blteMagic = []byte("BLTE")

type blteChunk struct {
	compressedSize   uint32
	uncompressedSize uint32
}

// DecodeBLTE decodes a BLTE-wrapped buffer into its raw (decompressed)
// payload. E-tagged (encrypted) frames are refused with
// ErrUnsupportedEncryptedData rather than decoded; any other unknown
// frame tag or structural violation fails with ErrParse. Chunk checksums
// and uncompressed-size fields are parsed but never verified.
func DecodeBLTE(buf []byte) ([]byte, error) {
	if len(buf) < 8 || !bytes.Equal(buf[0:4], blteMagic) {
		return nil, fmt.Errorf("%w: missing BLTE magic", ErrParse)
	}

	dataOffset := binary.BigEndian.Uint32(buf[4:8])
	if len(buf) < int(dataOffset) {
		return nil, fmt.Errorf("%w: data offset %d beyond buffer length %d", ErrParse, dataOffset, len(buf))
	}
	// buf[8] is the flag byte; unused by this decoder.
	if len(buf) < 12 {
		return nil, fmt.Errorf("%w: truncated BLTE header", ErrParse)
	}
	chunkCount := uint32(buf[9])<<16 | uint32(buf[10])<<8 | uint32(buf[11])

	chunks := make([]blteChunk, 0, chunkCount)
	descOff := 12
	const chunkDescSize = 4 + 4 + 16
	for i := uint32(0); i < chunkCount; i++ {
		end := descOff + chunkDescSize
		if end > len(buf) || end > int(dataOffset) {
			return nil, fmt.Errorf("%w: truncated chunk descriptor table", ErrParse)
		}
		desc := buf[descOff:end]
		chunks = append(chunks, blteChunk{
			compressedSize:   binary.BigEndian.Uint32(desc[0:4]),
			uncompressedSize: binary.BigEndian.Uint32(desc[4:8]),
		})
		descOff = end
	}

	var out bytes.Buffer
	dataOffs := int(dataOffset)
	for _, chunk := range chunks {
		end := dataOffs + int(chunk.compressedSize)
		if chunk.compressedSize == 0 || end > len(buf) {
			return nil, fmt.Errorf("%w: chunk body out of bounds", ErrParse)
		}
		chunkBuf := buf[dataOffs:end]
		tag := chunkBuf[0]
		body := chunkBuf[1:]

		switch tag {
		case 'N':
			out.Write(body)
		case 'Z':
			r, err := zlib.NewReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrZlib, err)
			}
			if _, err := io.Copy(&out, r); err != nil {
				r.Close()
				return nil, fmt.Errorf("%w: %v", ErrZlib, err)
			}
			r.Close()
		case 'E':
			return nil, ErrUnsupportedEncryptedData
		default:
			return nil, fmt.Errorf("%w: unknown BLTE frame tag %q", ErrParse, tag)
		}

		dataOffs = end
	}

	return out.Bytes(), nil
}
