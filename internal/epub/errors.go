package epub

import "errors"

var (
	// ErrInvalidEPub indicates the archive is missing structure required to read it.
	ErrInvalidEPub = errors.New("epub: invalid ePub file")

	// ErrFileNotFound indicates a manifest entry points at a file absent from the archive.
	ErrFileNotFound = errors.New("epub: file not found in archive")
)
