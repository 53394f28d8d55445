package notestation

import "errors"

var (
	// ErrRecordNotFound is returned when a referenced record is absent from the archive.
	ErrRecordNotFound = errors.New("archive record not found")

	// ErrCorruptRecord is returned when a record exists but cannot be decoded.
	ErrCorruptRecord = errors.New("archive record is corrupt")
)
