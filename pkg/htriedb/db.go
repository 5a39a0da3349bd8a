package htriedb

import (
	"errors"
	"fmt"
	"os"

	"github.com/natsys-lab/htriedb/pkg/blockalloc"
	"github.com/natsys-lab/htriedb/pkg/dcache"
	"github.com/natsys-lab/htriedb/pkg/htrie"
	"github.com/natsys-lab/htriedb/pkg/region"
)

// DB is an open htriedb database: a memory-mapped region plus the trie,
// allocator, and dcache wired over it.
type DB struct {
	region    *region.Region
	trie      *htrie.Trie
	writeback WritebackMode
}

// Open creates or opens the database file at opts.Path and returns a ready
// DB. The returned DB must be closed with Close.
func Open(opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidOptions)
	}
	if opts.CollMax == 0 {
		return nil, fmt.Errorf("%w: coll_max is required", ErrInvalidOptions)
	}
	if opts.BurstMinBits == 0 {
		return nil, fmt.Errorf("%w: burst_min_bits is required", ErrInvalidOptions)
	}

	var r *region.Region
	_, statErr := os.Stat(opts.Path)
	switch {
	case errors.Is(statErr, os.ErrNotExist):
		if opts.DBSize == 0 {
			return nil, fmt.Errorf("%w: db_size is required to create a new database", ErrInvalidOptions)
		}
		created, err := region.Create(opts.Path, opts.DBSize, opts.RootBits, opts.RecLen, opts.Inplace)
		if err != nil {
			return nil, err
		}
		r = created
	case statErr != nil:
		return nil, fmt.Errorf("htriedb: stat %s: %w", opts.Path, statErr)
	default:
		opened, err := region.Open(opts.Path, opts.RootBits, opts.RecLen, opts.Inplace)
		if err != nil {
			return nil, err
		}
		r = opened
	}

	rootBytes := htrie.RootSize(uint(opts.RootBits)) * 4
	arenaStart := r.ArenaOff(rootBytes)

	alloc := blockalloc.New(r.Arena(), arenaStart)
	dc := dcache.New(r.Arena())

	trie, err := htrie.New(htrie.Config{
		Arena:        htrie.Arena(r.Arena()),
		RootOff:      r.RootOff(),
		RootBits:     uint(opts.RootBits),
		RecLen:       opts.RecLen,
		Inplace:      opts.Inplace,
		CollMax:      opts.CollMax,
		BurstMinBits: opts.BurstMinBits,
		Alloc:        alloc,
		DCache:       dc,
		Shards:       opts.Shards,
		DiagOffset:   r.DiagOffset(),
	})
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	return &DB{region: r, trie: trie, writeback: opts.Writeback}, nil
}

// Insert writes a new record under key (see htrie.Trie.Insert).
func (db *DB) Insert(key uint64, data []byte) (int, htrie.RecordRef, error) {
	return db.trie.Insert(key, data)
}

// Lookup descends to the bucket holding key, if any (see htrie.Trie.Lookup).
func (db *DB) Lookup(key uint64) (*htrie.Handle, bool) {
	return db.trie.Lookup(key)
}

// Get returns the first record matching key (see htrie.Trie.Get).
func (db *DB) Get(key uint64) (htrie.Record, bool) {
	return db.trie.Get(key)
}

// Remove deletes every record matching key (see htrie.Trie.Remove).
func (db *DB) Remove(key uint64) error {
	return db.trie.Remove(key)
}

// Extend appends data to a variable-length record's chunk chain (see
// htrie.Trie.Extend).
func (db *DB) Extend(ref htrie.RecordRef, data []byte) (int, error) {
	return db.trie.Extend(ref, data)
}

// Walk visits every live record exactly once (see htrie.Trie.Walk).
func (db *DB) Walk(fn func(htrie.Record) error) error {
	return db.trie.Walk(fn)
}

// Count returns the number of live records (see htrie.Trie.Count).
func (db *DB) Count() (int, error) {
	return db.trie.Count()
}

// BurstCollisionNoMem returns the diagnostic counter of burst passes (first
// or secondary) that aliased a bucket because a sibling bucket could not be
// allocated.
func (db *DB) BurstCollisionNoMem() uint64 {
	return db.trie.BurstCollisionNoMem()
}

// Close synchronizes the mapping (when Writeback is WritebackSync) and
// unmaps the database file.
func (db *DB) Close() error {
	if db.writeback == WritebackSync {
		if err := db.region.Sync(); err != nil {
			_ = db.region.Close()
			return err
		}
	}
	return db.region.Close()
}
