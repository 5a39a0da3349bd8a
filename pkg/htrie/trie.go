package htrie

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// blockSize is the size of a block-allocator extent (spec.md: "4KB chunks
// are returned to the block allocator").
const blockSize = 4096

// maxShards bounds the per-CPU state array the way a fixed-size header
// field would in the persisted layout.
const maxShards = 64

func defaultShardCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	if n > maxShards {
		n = maxShards
	}
	return n
}

// Config configures a Trie over an already-sized arena. The root node must
// already occupy RootSize(RootBits) cache lines starting at RootOff (the
// region layer is responsible for carving that space out and zeroing it).
type Config struct {
	Arena    Arena
	RootOff  uint64
	RootBits uint
	// RecLen is the fixed record size. Ignored (must be 0) unless Inplace
	// or the caller wants the fixed-out-of-line regime; RecLen==0 with
	// Inplace==false selects the variable-length (VRec) regime.
	RecLen  uint32
	Inplace bool
	// CollMax is the bucket slot capacity (spec.md: "≤ 63"; this
	// implementation additionally requires ≤ maxCollMax, see bucket.go).
	CollMax uint32
	// BurstMinBits is the minimum number of free slots a bucket must retain
	// before it is considered full and must burst.
	BurstMinBits uint32
	Alloc        Allocator
	DCache       DCache
	// Shards is the number of per-CPU epoch/allocator shards. Defaults to
	// runtime.GOMAXPROCS(0) when zero.
	Shards int
	// DiagOffset is the byte offset in Arena of the burst_collision_no_mem
	// diagnostic counter (spec.md §9), or 0 if the caller does not persist
	// it in a header.
	DiagOffset uint64
}

// Trie is a handle to a burst hash trie built over a shared arena.
type Trie struct {
	arena    Arena
	rootOff  uint64
	rootBits uint
	recLen   uint32
	inplace  bool
	collMax  uint32
	burstMin uint32
	slotSize uint32
	bktSize  uint32

	alloc  Allocator
	dcache DCache
	epoch  *Epoch
	shards []shardState

	shardRR atomic.Uint64

	diagOffset          uint64
	burstCollisionNoMem atomic.Uint64
}

// New validates cfg and returns a ready-to-use Trie. Mirrors spec.md §6's
// init error list.
func New(cfg Config) (*Trie, error) {
	if cfg.RootBits < 4 || cfg.RootBits%4 != 0 {
		return nil, fmt.Errorf("%w: root_bits must be >= 4 and a multiple of 4, got %d", ErrInvalidUsage, cfg.RootBits)
	}
	if cfg.Inplace && cfg.RecLen == 0 {
		return nil, fmt.Errorf("%w: INPLACE requires rec_len > 0", ErrInvalidUsage)
	}
	if cfg.RecLen != 0 && !fitsHalfBlock(cfg.RecLen) {
		return nil, fmt.Errorf("%w: rec_len exceeds half block size", ErrInvalidUsage)
	}
	if cfg.CollMax == 0 || cfg.CollMax > maxCollMax {
		return nil, fmt.Errorf("%w: coll_max must be in [1,%d], got %d", ErrInvalidUsage, maxCollMax, cfg.CollMax)
	}
	if cfg.BurstMinBits == 0 || cfg.BurstMinBits >= cfg.CollMax {
		return nil, fmt.Errorf("%w: burst_min_bits must be in [1,coll_max)", ErrInvalidUsage)
	}
	if cfg.Alloc == nil || cfg.DCache == nil {
		return nil, fmt.Errorf("%w: allocator and dcache are required", ErrInvalidUsage)
	}
	if uint64(len(cfg.Arena)) > MaxArenaBytes() {
		return nil, fmt.Errorf("%w: arena size %d exceeds the maximum addressable size %d", ErrInvalidUsage, len(cfg.Arena), MaxArenaBytes())
	}

	slotSize := slotSizeFor(cfg.Inplace, cfg.RecLen)
	bktSize := bucketSize(cfg.CollMax, slotSize)
	if cfg.Inplace && bktSize > blockSize {
		return nil, fmt.Errorf("%w: inplace bucket size %d exceeds block size %d", ErrInvalidUsage, bktSize, blockSize)
	}

	shards := cfg.Shards
	if shards <= 0 {
		shards = defaultShardCount()
	}

	t := &Trie{
		arena:      cfg.Arena,
		rootOff:    cfg.RootOff,
		rootBits:   cfg.RootBits,
		recLen:     cfg.RecLen,
		inplace:    cfg.Inplace,
		collMax:    cfg.CollMax,
		burstMin:   cfg.BurstMinBits,
		slotSize:   slotSize,
		bktSize:    bktSize,
		alloc:      cfg.Alloc,
		dcache:     cfg.DCache,
		epoch:      NewEpoch(shards),
		shards:     make([]shardState, shards),
		diagOffset: cfg.DiagOffset,
	}
	return t, nil
}

// fitsHalfBlock is the rec_len > block_size/2 boundary check.
func fitsHalfBlock(recLen uint32) bool { return uint64(recLen) <= blockSize/2 }

// rootNode returns a node view over the trie's root.
func (t *Trie) rootNode() node {
	return node{arena: t.arena, off: t.rootOff, size: RootSize(t.rootBits)}
}

// nodeAt returns a node view over a non-root index node referenced by ref.
func (t *Trie) nodeAt(ref Ref) node {
	return node{arena: t.arena, off: NodeByteOffset(ref.Index()), size: Fanout}
}

// bucketAt returns a bucket view over the bucket referenced by ref.
func (t *Trie) bucketAt(ref Ref) bucket {
	return bucket{
		arena:    t.arena,
		off:      BucketByteOffset(ref.Index()),
		collMax:  t.collMax,
		slotSize: t.slotSize,
		inplace:  t.inplace,
		recLen:   t.recLen,
	}
}

// nextShard hands out shard indices round-robin. Go has no primitive to
// pin a goroutine to a CPU, so this is an honest approximation of "one
// logical execution context per CPU" rather than true affinity.
func (t *Trie) nextShard() int {
	n := t.shardRR.Add(1)
	return int(n % uint64(t.epoch.Shards()))
}

func (t *Trie) recordBurstCollisionNoMem() {
	t.burstCollisionNoMem.Add(1)
	if t.diagOffset != 0 {
		t.arena.AddU64(t.diagOffset, 1)
	}
}

// BurstCollisionNoMem returns the diagnostic counter of burst passes (first
// or secondary) that aliased a bucket because a sibling bucket could not be
// allocated (spec.md §4.6 step 4).
func (t *Trie) BurstCollisionNoMem() uint64 { return t.burstCollisionNoMem.Load() }
