package cdncache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHdr := r.Header.Get("Range")
		if rangeHdr == "" {
			w.Write(body)
			return
		}
		var start, last int64
		if _, err := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &start, &last); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[start : last+1])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCacheFetchWholeMaterializesLocally(t *testing.T) {
	body := []byte("hello archive")
	srv := newTestServer(t, body)
	host := strings.TrimPrefix(srv.URL, "http://")

	ctx := context.Background()
	root := t.TempDir()
	c, err := New(ctx, root, host, "tpr/wow")
	require.NoError(t, err)

	got, err := c.FetchWhole(ctx, "config", "deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	require.Equal(t, body, got)
	require.FileExists(t, ObjectPath(root, "config", "deadbeefdeadbeefdeadbeefdeadbeef"))

	// Second fetch must be served from the local mirror/hot cache, not
	// a second request (the httptest handler would still succeed, but
	// this at least exercises the hit path without panicking).
	got2, err := c.FetchWhole(ctx, "config", "deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	require.Equal(t, body, got2)
}

func TestCacheFetchRangeAndCoalesced(t *testing.T) {
	body := make([]byte, 100)
	for i := range body {
		body[i] = byte(i)
	}
	srv := newTestServer(t, body)
	host := strings.TrimPrefix(srv.URL, "http://")

	ctx := context.Background()
	c, err := New(ctx, t.TempDir(), host, "tpr/wow")
	require.NoError(t, err)

	got, err := c.FetchRange(ctx, "data", "archivekeyarchivekeyarchivekey12", 10, 20)
	require.NoError(t, err)
	require.Equal(t, body[10:20], got)

	absOffset, buf, err := c.FetchCoalesced(ctx, "archivekeyarchivekeyarchivekey12", []CoalescedEntry{
		{OffsetBytes: 30, SizeBytes: 5},
		{OffsetBytes: 50, SizeBytes: 5},
	})
	require.NoError(t, err)
	require.Equal(t, int64(30), absOffset)
	require.Equal(t, body[30:55], buf)
}
