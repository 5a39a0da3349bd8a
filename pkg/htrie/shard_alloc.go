package htrie

import "sync/atomic"

// wcl categories, matching spec.md's "three write-combining offsets for
// index/bucket/data allocation" per CPU.
const (
	wclIndex = iota
	wclBucket
	wclData
	wclCount
)

// shardState holds per-shard write-combining cursors. These are locality
// hints only — pkg/blockalloc is responsible for making concurrent use of
// a shard's cursor safe; a goroutine's shard assignment here is an
// approximation (see Trie.nextShard), not exclusive ownership.
type shardState struct {
	wcl        [wclCount]uint64
	freeBucket atomic.Uint32 // Treiber-stack head: 0 = empty, else (unit idx + 1)
}

func (t *Trie) shardWCL(shard int) *shardState {
	return &t.shards[shard%len(t.shards)]
}

// unitAlign rounds n up to a whole number of MinDRec units. Bucket and data
// offsets are stored as MinDRec unit indices, so every bucket and data
// allocation is sized in whole units to keep the next one unit-aligned.
func unitAlign(n uint32) uint32 { return (n + MinDRec - 1) &^ (MinDRec - 1) }

// allocIndexNode allocates and zeroes a fresh index node, returning its
// unit offset.
func (t *Trie) allocIndexNode(shard int) (uint32, error) {
	s := t.shardWCL(shard)
	off, err := t.alloc.AllocFix(CacheLine, &s.wcl[wclIndex])
	if err != nil {
		return 0, err
	}
	idx := ByteToNodeIndex(off)
	n := node{arena: t.arena, off: NodeByteOffset(idx), size: Fanout}
	for i := 0; i < Fanout; i++ {
		n.initChild(uint32(i), 0)
	}
	return idx, nil
}

func (t *Trie) rollbackIndexNode(shard int) {
	s := t.shardWCL(shard)
	t.alloc.AllocRollback(CacheLine, &s.wcl[wclIndex])
}

// allocBucket returns a fresh, not-yet-published bucket with col_map reset
// to the sentinel-only state, preferring a reclaimed bucket from this
// shard's free-bucket queue (spec.md §3 "Lifecycles") over a new
// allocation.
func (t *Trie) allocBucket(shard int) (uint32, error) {
	if idx, ok := t.popFreeBucket(shard); ok {
		b := t.bucketAt(MakeDataRef(idx))
		b.initEmpty()
		return idx, nil
	}
	s := t.shardWCL(shard)
	off, err := t.alloc.AllocFix(unitAlign(t.bktSize), &s.wcl[wclBucket])
	if err != nil {
		return 0, err
	}
	idx := ByteToBucketIndex(off)
	b := t.bucketAt(MakeDataRef(idx))
	b.initEmpty()
	return idx, nil
}

// pushFreeBucket returns a reclaimed, unreachable bucket to shard's local
// free queue, linked through the bucket's own `next` header field.
func (t *Trie) pushFreeBucket(shard int, idx uint32) {
	s := t.shardWCL(shard)
	b := t.bucketAt(MakeDataRef(idx))
	for {
		head := s.freeBucket.Load()
		b.setNext(Ref(head))
		if s.freeBucket.CompareAndSwap(head, idx+1) {
			return
		}
	}
}

func (t *Trie) popFreeBucket(shard int) (uint32, bool) {
	s := t.shardWCL(shard)
	for {
		head := s.freeBucket.Load()
		if head == 0 {
			return 0, false
		}
		idx := head - 1
		next := uint32(t.bucketAt(MakeDataRef(idx)).next())
		if s.freeBucket.CompareAndSwap(head, next) {
			return idx, true
		}
	}
}

func (t *Trie) rollbackBucket(shard int) {
	s := t.shardWCL(shard)
	t.alloc.AllocRollback(unitAlign(t.bktSize), &s.wcl[wclBucket])
}

// allocFixedData allocates space for a fixed out-of-line record, preferring
// a reclaimed chunk from the matching dcache size class over a fresh
// allocation (spec.md §2 component 8; mirrors allocBucket's reuse-first
// pattern over t.popFreeBucket).
func (t *Trie) allocFixedData(shard int) (uint32, error) {
	if class, ok := classForSize(t.recLen); ok {
		if off, ok := t.dcache.Pop(class); ok {
			return ByteToBucketIndex(off), nil
		}
	}
	s := t.shardWCL(shard)
	off, err := t.alloc.AllocFix(unitAlign(t.recLen), &s.wcl[wclData])
	if err != nil {
		return 0, err
	}
	return ByteToBucketIndex(off), nil
}

// allocVariableData allocates a VRec chunk for wanted payload bytes,
// preferring a reclaimed chunk from the matching dcache size class over a
// fresh allocation (fresh allocations are rounded up to whole MinDRec
// units). The granted payload length never exceeds wanted; it is smaller
// when a reclaimed chunk's header records a shorter length than wanted, or
// when the allocator grants a smaller region. Either way it writes the
// chunk header and returns its unit offset and the payload length granted.
func (t *Trie) allocVariableData(shard int, wanted uint32) (uint32, uint32, error) {
	want := wanted + vrecHeaderSize
	if class, ok := classForSize(want); ok {
		if off, ok := t.dcache.Pop(class); ok {
			v := vrec{arena: t.arena, off: off}
			granted := v.length()
			if granted > wanted {
				granted = wanted
			}
			v.init(0, granted)
			return ByteToBucketIndex(off), granted, nil
		}
	}
	s := t.shardWCL(shard)
	length := unitAlign(want)
	off, err := t.alloc.AllocData(vrecHeaderSize, &length, &s.wcl[wclData])
	if err != nil {
		return 0, 0, err
	}
	granted := length - vrecHeaderSize
	if granted > wanted {
		granted = wanted
	}
	v := vrec{arena: t.arena, off: off}
	v.init(0, granted)
	return ByteToBucketIndex(off), granted, nil
}

// rollbackData undoes the most recent data allocation on shard. Per
// spec.md §9 open question 3, this is sized to the actual data region
// (dataSize, rounded up to whole MinDRec units as the allocation was), not
// the bucket size — a fix for the "rollback_data accounts bucket size" bug
// the spec notes.
func (t *Trie) rollbackData(shard int, dataSize uint32) {
	s := t.shardWCL(shard)
	t.alloc.AllocRollback(unitAlign(dataSize), &s.wcl[wclData])
}
