package sheepfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("hello world"),
		[]byte("a second, slightly longer payload"),
		{0x00, 0x01, 0x02, 0x03},
	}
	var written []RepackEntry
	for i, p := range payloads {
		e, err := w.Append(uint32(i*10), uint64(i), p)
		require.NoError(t, err)
		written = append(written, e)
	}
	require.NoError(t, w.Finish())

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	for i, e := range written {
		got, err := r.Read(e)
		require.NoError(t, err)
		require.Equal(t, payloads[i], got)

		got, err = r.ReadByID(e.FileID)
		require.NoError(t, err)
		require.Equal(t, payloads[i], got)
	}
}

func TestWriterSegmentRollover(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	p0 := make([]byte, 100)
	p1 := make([]byte, 200)
	p2 := make([]byte, 255_999_750)

	e0, err := w.Append(0, 0, p0)
	require.NoError(t, err)
	e1, err := w.Append(1, 0, p1)
	require.NoError(t, err)
	e2, err := w.Append(2, 0, p2)
	require.NoError(t, err)

	require.Equal(t, uint16(0), e0.SegmentIndex)
	require.Equal(t, uint32(0), e0.StartBytes)
	require.Equal(t, uint16(0), e1.SegmentIndex)
	require.Equal(t, uint32(100), e1.StartBytes)
	require.Equal(t, uint16(1), e2.SegmentIndex)
	require.Equal(t, uint32(0), e2.StartBytes)

	require.NoError(t, w.Finish())
}

func TestWriterRejectsOversizePayload(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	_, err = w.Append(0, 0, make([]byte, MaxSegmentBytes+1))
	require.Error(t, err)
}

func TestWriterExactCapStartsNewSegmentOnlyIfNonEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	// Current segment is empty: writing exactly the cap must not roll over.
	e0, err := w.Append(0, 0, make([]byte, MaxSegmentBytes))
	require.NoError(t, err)
	require.Equal(t, uint16(0), e0.SegmentIndex)

	// Segment 0 is now full; any further payload rolls to segment 1.
	e1, err := w.Append(1, 0, []byte{0x01})
	require.NoError(t, err)
	require.Equal(t, uint16(1), e1.SegmentIndex)
	require.Equal(t, uint32(0), e1.StartBytes)

	require.NoError(t, w.Finish())
}

func TestIndexRoundTrip(t *testing.T) {
	entries := []RepackEntry{
		{FileID: 1, NameHash: 0xdeadbeef, SegmentIndex: 0, StartBytes: 0, SizeBytes: 10},
		{FileID: 2, NameHash: 0, SegmentIndex: 1, StartBytes: 512, SizeBytes: 20},
	}
	encoded := EncodeIndex(entries)
	decoded, err := DecodeIndex(encoded)
	require.NoError(t, err)
	require.Equal(t, entries, decoded)
	require.Equal(t, encoded, EncodeIndex(decoded))
}
