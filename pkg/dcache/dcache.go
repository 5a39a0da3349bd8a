package dcache

import (
	"sync/atomic"
	"unsafe"

	"github.com/natsys-lab/htriedb/pkg/htrie"
)

// unitSize mirrors htrie's MinDRec data-unit granularity: every freed chunk
// is at least this large, so a chunk's first 4 bytes are free to reuse as
// the intrusive "next" link once it's been pushed onto a class's stack.
const unitSize = 128

const numClasses = 5

// Cache is a reference dcache: one Treiber stack per size class, backed by
// an arena shared with the trie that frees into it. A stack's head word
// packs a 32-bit ABA tag in the high bits and a 32-bit unit index (1-based;
// 0 means empty) in the low bits, following the retry-on-CAS-failure idiom
// the corpus uses for its own CAS-guarded registry lookups, generalized
// from a map entry to an intrusive linked stack.
type Cache struct {
	arena []byte
	heads [numClasses]atomic.Uint64
}

// New returns a Cache that links freed chunks through arena. arena must be
// the same backing byte slice the owning trie addresses by offset.
func New(arena []byte) *Cache {
	return &Cache{arena: arena}
}

// Empty reports whether class's freelist currently has no entries. The
// result is advisory under concurrent Push/Pop.
func (c *Cache) Empty(class htrie.SizeClass) bool {
	return uint32(c.heads[class].Load()) == 0
}

// Push returns the chunk at offset (at least unitSize bytes) to class's
// freelist.
func (c *Cache) Push(class htrie.SizeClass, offset uint64) {
	idx := uint32(offset/unitSize) + 1
	for {
		old := c.heads[class].Load()
		oldIdx := uint32(old)
		tag := uint32(old >> 32)
		c.writeNext(idx, oldIdx)
		next := uint64(tag+1)<<32 | uint64(idx)
		if c.heads[class].CompareAndSwap(old, next) {
			return
		}
	}
}

// Pop removes and returns a chunk from class's freelist, or ok=false if it
// was empty.
func (c *Cache) Pop(class htrie.SizeClass) (uint64, bool) {
	for {
		old := c.heads[class].Load()
		idx := uint32(old)
		if idx == 0 {
			return 0, false
		}
		tag := uint32(old >> 32)
		nextIdx := c.readNext(idx)
		next := uint64(tag+1)<<32 | uint64(nextIdx)
		if c.heads[class].CompareAndSwap(old, next) {
			return uint64(idx-1) * unitSize, true
		}
	}
}

func (c *Cache) nextPtr(idx uint32) *uint32 {
	off := uint64(idx-1) * unitSize
	return (*uint32)(unsafe.Pointer(&c.arena[off]))
}

func (c *Cache) writeNext(idx uint32, val uint32) {
	atomic.StoreUint32(c.nextPtr(idx), val)
}

func (c *Cache) readNext(idx uint32) uint32 {
	return atomic.LoadUint32(c.nextPtr(idx))
}
