package tact

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Parse, zlib and encryption failures returned by
// this package are one of these or wrap one with fmt.Errorf's %w, so
// callers can classify them with errors.Is. Missing file ids, file names
// and archive entries are reported with the typed errors below instead,
// which callers classify with errors.As.
var (
	// ErrHTTPRequest marks a transport-layer failure reaching the CDN.
	ErrHTTPRequest = errors.New("tact: http request failed")
	// ErrIO marks a filesystem failure.
	ErrIO = errors.New("tact: io failure")
	// ErrParse marks any binary or text structural violation.
	ErrParse = errors.New("tact: parse error")
	// ErrZlib marks an inflate failure of a Z-tagged BLTE frame.
	ErrZlib = errors.New("tact: zlib inflate failed")
	// ErrUnsupportedEncryptedData marks a BLTE E-frame. Recovered (logged
	// and skipped) only by the repack writer; propagated everywhere else.
	ErrUnsupportedEncryptedData = errors.New("tact: blte frame is encrypted, unsupported")
	// ErrMissingCKey marks a CKey with no encoding table entry.
	ErrMissingCKey = errors.New("tact: ckey has no encoding table entry")
)

// MissingFileIDError is returned when a FileDataID has no root table entry.
type MissingFileIDError struct {
	FileID uint32
}

func (e *MissingFileIDError) Error() string {
	return fmt.Sprintf("tact: no root table entry for file id %d", e.FileID)
}

// MissingFileNameError is returned when a path's name hash has no root
// table entry.
type MissingFileNameError struct {
	Name string
}

func (e *MissingFileNameError) Error() string {
	return fmt.Sprintf("tact: no root table entry for file name %q", e.Name)
}

// MissingArchiveEntryError is returned when an EKey cannot be located in
// any loaded archive index.
type MissingArchiveEntryError struct {
	EKey EKey
}

func (e *MissingArchiveEntryError) Error() string {
	return fmt.Sprintf("tact: no archive entry for ekey %s", e.EKey)
}
