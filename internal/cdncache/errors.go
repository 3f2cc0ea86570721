package cdncache

import "errors"

// ErrIO marks a filesystem failure within the cache layer.
var ErrIO = errors.New("cdncache: io failure")

// ErrHTTPRequest marks a transport-layer failure reaching the CDN.
var ErrHTTPRequest = errors.New("cdncache: http request failed")
