package htrie

import "errors"

// Sentinel errors returned by the public API. Only these (or errors
// wrapping them with fmt.Errorf's %w) ever escape a public call; RETRY is
// deliberately not among them — it is resolved internally by restarting
// the operation from descent.
var (
	// ErrOutOfMemory means the allocator refused a request.
	ErrOutOfMemory = errors.New("htrie: allocator out of memory")
	// ErrNoSpace means all key entropy has been consumed (RESOLVED(bits))
	// and the bucket at that depth is still full.
	ErrNoSpace = errors.New("htrie: key entropy exhausted, bucket full")
	// ErrInvalidUsage covers malformed calls: zero-length insert, a record
	// too large for the configured layout, bad flag combinations.
	ErrInvalidUsage = errors.New("htrie: invalid usage")
	// ErrNotFound is returned by Remove when the key has no matching record.
	ErrNotFound = errors.New("htrie: key not found")
)
