// Package blockalloc implements the block/extent allocator htrie consumes
// through its Allocator contract: a mutex-free bump-pointer allocator over
// an arena, carved into fixed-size blocks that per-shard write-combining
// cursors (WCLs) bump through before requesting a fresh block.
package blockalloc
