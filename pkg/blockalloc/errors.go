package blockalloc

import "errors"

// ErrOutOfMemory indicates the arena has no space left for a new block.
var ErrOutOfMemory = errors.New("blockalloc: out of memory")
