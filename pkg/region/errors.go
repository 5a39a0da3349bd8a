package region

import "errors"

var (
	// ErrCorrupt indicates the header failed CRC or structural validation.
	ErrCorrupt = errors.New("region: corrupt")
	// ErrIncompatible indicates the header is well-formed but its
	// configuration doesn't match what the caller asked to Open.
	ErrIncompatible = errors.New("region: incompatible")
	// ErrInvalidInput indicates a bad argument to Create or Open.
	ErrInvalidInput = errors.New("region: invalid input")
	// ErrBusy indicates the region's advisory lock is held elsewhere.
	ErrBusy = errors.New("region: busy")
)
