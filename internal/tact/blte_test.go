package tact

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBLTERawChunk(t *testing.T) {
	// header: BLTE + data_offset=36 (12-byte header + one 24-byte chunk
	// descriptor, big-endian u32) + flag=0x0F + chunk_count=0x000001, one
	// chunk descriptor {compressed_size=5, uncompressed_size=4,
	// checksum=zeros}, then the data chunk: 'N' + 0xde 0xad 0xbe 0xef.
	var buf bytes.Buffer
	buf.WriteString("BLTE")
	buf.Write([]byte{0x00, 0x00, 0x00, 0x24}) // data_offset = 36
	buf.WriteByte(0x0F)                       // flag
	buf.Write([]byte{0x00, 0x00, 0x01})       // chunk_count = 1
	buf.Write([]byte{0x00, 0x00, 0x00, 0x05}) // compressed_size
	buf.Write([]byte{0x00, 0x00, 0x00, 0x04}) // uncompressed_size
	buf.Write(make([]byte, 16))               // checksum
	buf.WriteByte('N')
	buf.Write([]byte{0xde, 0xad, 0xbe, 0xef})

	out, err := DecodeBLTE(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out)
}

func TestDecodeBLTEZlibChunk(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	buf.WriteString("BLTE")
	dataOffset := uint32(12 + 24)
	buf.Write(u32be(dataOffset))
	buf.WriteByte(0x0F)
	buf.Write([]byte{0x00, 0x00, 0x01})
	compressedSize := uint32(1 + compressed.Len())
	buf.Write(u32be(compressedSize))
	buf.Write(u32be(uint32(len(payload))))
	buf.Write(make([]byte, 16))
	buf.WriteByte('Z')
	buf.Write(compressed.Bytes())

	out, err := DecodeBLTE(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestDecodeBLTEEncryptedChunkFails(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("BLTE")
	buf.Write(u32be(12 + 24))
	buf.WriteByte(0x0F)
	buf.Write([]byte{0x00, 0x00, 0x01})
	buf.Write(u32be(5))
	buf.Write(u32be(4))
	buf.Write(make([]byte, 16))
	buf.WriteByte('E')
	buf.Write([]byte{0x01, 0x02, 0x03, 0x04})

	_, err := DecodeBLTE(buf.Bytes())
	require.True(t, errors.Is(err, ErrUnsupportedEncryptedData))
}

func TestDecodeBLTEUnknownTagFails(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("BLTE")
	buf.Write(u32be(12 + 24))
	buf.WriteByte(0x0F)
	buf.Write([]byte{0x00, 0x00, 0x01})
	buf.Write(u32be(5))
	buf.Write(u32be(4))
	buf.Write(make([]byte, 16))
	buf.WriteByte('X')
	buf.Write([]byte{0x01, 0x02, 0x03, 0x04})

	_, err := DecodeBLTE(buf.Bytes())
	require.True(t, errors.Is(err, ErrParse))
}

func TestDecodeBLTERejectsBadMagic(t *testing.T) {
	_, err := DecodeBLTE([]byte("NOPE0000"))
	require.Error(t, err)
}

func u32be(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
