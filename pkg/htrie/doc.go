// Package htrie implements a concurrent, cache-conscious burst hash trie.
//
// The trie maps 64-bit hashed keys to records stored inside a single
// contiguous byte arena (normally a memory-mapped database file owned by a
// caller such as pkg/region). It combines a burst-trie index with atomic
// node publication, lock-free collision buckets addressed by a bitmap of
// occupied slots, and a per-CPU generation scheme that lets readers run
// without locks while writers reclaim memory safely.
//
// htrie does not allocate raw bytes itself. Callers supply an [Allocator]
// (block/extent allocation with per-CPU write-combining cursors) and a
// [DCache] (size-class freelists for reclaimed data chunks); both are
// consumed as contracts, not implemented here — see pkg/blockalloc and
// pkg/dcache for reference implementations.
package htrie
