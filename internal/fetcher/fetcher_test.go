package fetcher

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheepfetch/sheepfetch/internal/cdncache"
)

// buildBLTE wraps payload in a single-chunk, uncompressed ('N') BLTE
// envelope, matching what tact.DecodeBLTE expects.
func buildBLTE(payload []byte) []byte {
	header := make([]byte, 12)
	copy(header[0:4], "BLTE")
	binary.BigEndian.PutUint32(header[4:8], 36) // dataOffset: 12 header + 24 one descriptor
	header[8] = 0x0f                            // flag byte, unused by the decoder
	header[9], header[10], header[11] = 0, 0, 1 // chunkCount = 1

	body := append([]byte{'N'}, payload...)
	desc := make([]byte, 24)
	binary.BigEndian.PutUint32(desc[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(desc[4:8], uint32(len(payload)))

	out := make([]byte, 0, len(header)+len(desc)+len(body))
	out = append(out, header...)
	out = append(out, desc...)
	out = append(out, body...)
	return out
}

// buildEncodingBody constructs a minimal "EN"-tagged encoding table body
// with one 1 KiB CKey page holding the given (ckey, ekey) records.
func buildEncodingBody(records [][2][]byte) []byte {
	const hashSizeCKey = 16
	const pageSizeCKeyKB = 1
	pageCountCKey := uint32(1)

	header := make([]byte, 22)
	copy(header[0:2], "EN")
	header[2] = 1 // version
	header[3] = hashSizeCKey
	header[4] = 16 // hash_size_ekey, unused
	binary.BigEndian.PutUint16(header[5:7], pageSizeCKeyKB)
	binary.BigEndian.PutUint32(header[9:13], pageCountCKey)
	header[17] = 0 // padding
	binary.BigEndian.PutUint32(header[18:22], 0)

	pageIndexSize := int(pageCountCKey) * (hashSizeCKey + 16)
	pageBytes := pageSizeCKeyKB * 1024

	page := make([]byte, pageBytes)
	pos := 0
	for _, rec := range records {
		ckey, ekey := rec[0], rec[1]
		pos += copy(page[pos:], []byte{1, 0}) // ekey_count=1, padding
		pos += copy(page[pos:], make([]byte, 4))
		pos += copy(page[pos:], ckey)
		pos += copy(page[pos:], ekey)
	}

	out := make([]byte, 0, len(header)+pageIndexSize+len(page))
	out = append(out, header...)
	out = append(out, make([]byte, pageIndexSize)...)
	out = append(out, page...)
	return out
}

// buildRootBody constructs a single-block root table body with one entry.
func buildRootBody(fileID uint32, ckey []byte, nameHash uint64) []byte {
	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:4], 1) // num_files
	delta := make([]byte, 4)
	binary.LittleEndian.PutUint32(delta, fileID) // fileID starts at 0
	entry := make([]byte, 16+8)
	copy(entry[0:16], ckey)
	binary.LittleEndian.PutUint64(entry[16:24], nameHash)

	out := append([]byte{}, header...)
	out = append(out, delta...)
	out = append(out, entry...)
	return out
}

// buildArchiveIndex constructs a one-entry archive index: a single 4 KiB
// block followed by the 36-byte footer.
func buildArchiveIndex(ekey []byte, sizeBytes, offsetBytes uint32) []byte {
	block := make([]byte, 4096)
	copy(block[0:16], ekey)
	binary.BigEndian.PutUint32(block[16:20], sizeBytes)
	binary.BigEndian.PutUint32(block[20:24], offsetBytes)

	footer := make([]byte, 36)
	footer[16] = 1 // version
	footer[19] = 4 // block_size_kb
	footer[20] = 4 // offset_bytes width
	footer[21] = 4 // size_bytes width
	footer[22] = 16
	footer[23] = 8
	binary.BigEndian.PutUint32(footer[24:28], 1) // num_files

	return append(block, footer...)
}

func TestFetcherEndToEnd(t *testing.T) {
	const product = "wow"
	const pathPrefix = "tpr/wow"
	const placeholderHost = "ph"

	rootCKey := bytes.Repeat([]byte{0xaa}, 16)
	rootEKey := bytes.Repeat([]byte{0xbb}, 16)
	assetCKey := bytes.Repeat([]byte{0x11}, 16)
	assetEKey := bytes.Repeat([]byte{0x22}, 16)
	archiveKey := hex.EncodeToString(bytes.Repeat([]byte{0x33}, 16))
	buildConfigKey := hex.EncodeToString(bytes.Repeat([]byte{0x44}, 16))
	cdnConfigKey := hex.EncodeToString(bytes.Repeat([]byte{0x55}, 16))
	encodingSelfEKey := hex.EncodeToString(bytes.Repeat([]byte{0x66}, 16))

	const fileID = uint32(42)
	const nameHash = uint64(0x1234567890abcdef)
	assetPayload := []byte("hello asset")
	assetBLTE := buildBLTE(assetPayload)

	archivePadding := make([]byte, 16)
	archiveBlob := append(append([]byte{}, archivePadding...), assetBLTE...)

	encodingBLTE := buildBLTE(buildEncodingBody([][2][]byte{
		{rootCKey, rootEKey},
		{assetCKey, assetEKey},
	}))
	rootBLTE := buildBLTE(buildRootBody(fileID, assetCKey, nameHash))
	archiveIndexBlob := buildArchiveIndex(assetEKey, uint32(len(assetBLTE)), uint32(len(archivePadding)))

	versionsManifest := []byte("Region!STRING:0|BuildConfig!STRING:0|CDNConfig!STRING:0\n" +
		"us|" + buildConfigKey + "|" + cdnConfigKey + "\n")
	buildConfigText := []byte("root = " + hex.EncodeToString(rootCKey) + "\n" +
		"encoding = 00000000000000000000000000000000 " + encodingSelfEKey + "\n")
	cdnConfigText := []byte("archives = " + archiveKey + "\n")

	path := func(full string) string { return strings.TrimPrefix(full, "http://"+placeholderHost) }
	versionsPath := path(cdncache.ManifestURL("http://"+placeholderHost, product, "versions"))
	cdnsPath := path(cdncache.ManifestURL("http://"+placeholderHost, product, "cdns"))
	buildConfigPath := path(cdncache.ObjectURL(placeholderHost, pathPrefix, "config", buildConfigKey, ""))
	cdnConfigPath := path(cdncache.ObjectURL(placeholderHost, pathPrefix, "config", cdnConfigKey, ""))
	encodingPath := path(cdncache.ObjectURL(placeholderHost, pathPrefix, "data", encodingSelfEKey, ""))
	rootPath := path(cdncache.ObjectURL(placeholderHost, pathPrefix, "data", hex.EncodeToString(rootEKey), ""))
	archiveIndexPath := path(cdncache.ObjectURL(placeholderHost, pathPrefix, "data", archiveKey, ".index"))
	archiveDataPath := path(cdncache.ObjectURL(placeholderHost, pathPrefix, "data", archiveKey, ""))

	var cdnsManifest []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case versionsPath:
			w.Write(versionsManifest)
		case cdnsPath:
			w.Write(cdnsManifest)
		case buildConfigPath:
			w.Write(buildConfigText)
		case cdnConfigPath:
			w.Write(cdnConfigText)
		case encodingPath:
			w.Write(encodingBLTE)
		case rootPath:
			w.Write(rootBLTE)
		case archiveIndexPath:
			w.Write(archiveIndexBlob)
		case archiveDataPath:
			rangeHdr := r.Header.Get("Range")
			if rangeHdr == "" {
				w.Write(archiveBlob)
				return
			}
			var start, last int64
			if _, err := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &start, &last); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusPartialContent)
			w.Write(archiveBlob[start : last+1])
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	cdnsManifest = []byte("Name!STRING:0|Path!STRING:0|Hosts!STRING:0\n" +
		"us|" + pathPrefix + "|" + host + "\n")

	ctx := context.Background()
	f, err := New(ctx, Config{
		PatchServer: srv.URL,
		Product:     product,
		Region:      "us",
		CacheRoot:   t.TempDir(),
	})
	require.NoError(t, err)

	require.Equal(t, []uint32{fileID}, f.FileIDs())

	resolved, err := f.ResolveByID(fileID)
	require.NoError(t, err)
	require.Equal(t, nameHash, resolved.NameHash)

	got, err := f.FetchByID(ctx, fileID)
	require.NoError(t, err)
	require.Equal(t, assetPayload, got)

	_, err = f.ResolveByID(999)
	require.Error(t, err)
}
