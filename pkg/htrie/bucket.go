package htrie

import "math/bits"

// bucketHeaderSize is the byte size of {col_map uint64, next uint32, pad}.
const bucketHeaderSize = 16

// sentinelBit is the permanently-forced-set bit of col_map (spec.md §3:
// "the most-significant bit of col_map is always forced set so that a find
// lowest zero instruction never fails"). maxCollMax keeps every real slot
// bit strictly below it.
const sentinelBit = 63

// maxCollMax is the largest COLL_MAX this implementation accepts. Bit/slot
// mapping here is direct (bit i <-> slot i, see DESIGN.md for why this
// deviates from the literal "bit = COLL_MAX - slot" formula), so slot bits
// occupy [0, collMax) and must stay clear of sentinelBit.
const maxCollMax = 62

// bucket is a view over a fixed-size collision bucket living at a byte
// offset in the arena. Layout: header (col_map, next) then an array of
// collMax fixed-size slots, each holding either {key, data-offset} for
// out-of-line records or {key, payload} for inplace ones.
type bucket struct {
	arena    Arena
	off      uint64
	collMax  uint32
	slotSize uint32
	inplace  bool
	recLen   uint32
}

func (b bucket) colMapOff() uint64 { return b.off }
func (b bucket) nextOff() uint64   { return b.off + 8 }
func (b bucket) slotOff(slot uint32) uint64 {
	return b.off + bucketHeaderSize + uint64(slot)*uint64(b.slotSize)
}

// bucketSize returns the total byte size of a bucket with the given
// per-slot size and collision capacity.
func bucketSize(collMax, slotSize uint32) uint32 {
	return bucketHeaderSize + collMax*slotSize
}

// slotSizeFor returns the slot size for the given layout: out-of-line slots
// hold {key uint64, data-offset uint32} rounded up to 8 bytes; inplace
// slots hold {key uint64, payload[recLen]} likewise rounded up.
func slotSizeFor(inplace bool, recLen uint32) uint32 {
	raw := uint32(8)
	if inplace {
		raw += recLen
	} else {
		raw += 4
	}
	return (raw + 7) &^ 7
}

// colMap atomically reads the bucket's occupancy bitmap. An atomic load
// here is the reader-side acquire pairing the writer's release bit-set in
// claimAndWrite.
func (b bucket) colMap() uint64 { return b.arena.LoadU64(b.colMapOff()) }

// initEmpty initializes a freshly allocated, not-yet-published bucket: only
// the sentinel bit is set, next is cleared. Safe without atomics because no
// other goroutine can observe this bucket until it is CAS-published into a
// parent slot.
func (b bucket) initEmpty() {
	b.arena.StoreU64(b.colMapOff(), uint64(1)<<sentinelBit)
	b.arena.StoreRef(b.nextOff(), 0)
}

func (b bucket) next() Ref          { return b.arena.LoadRef(b.nextOff()) }
func (b bucket) setNext(r Ref)      { b.arena.StoreRef(b.nextOff(), r) }

// activeMask covers the real slot bits [0, collMax).
func (b bucket) activeMask() uint64 { return (uint64(1) << b.collMax) - 1 }

// full reports whether claiming one more slot would leave fewer than
// burstMinBits slots free.
func (b bucket) full(burstMinBits uint32) bool {
	used := bits.OnesCount64(b.colMap() & b.activeMask())
	return b.collMax-uint32(used) <= burstMinBits
}

// claimAndWrite finds the lowest clear bit in col_map, lets write fill in
// that slot's metadata, and only then publishes the slot by CAS'ing the bit
// from the exact snapshot the candidate was chosen from. This ordering
// (metadata store, then the publishing CAS) is what spec.md §4.3 requires
// of write_metadata — "metadata store must be visible before the col_map
// bit is set" — so unlike a plain test-and-set, the bit here is the very
// last thing claimAndWrite touches. A losing CAS means some other writer
// claimed a conflicting bit first; the speculative metadata write is
// simply abandoned (harmless: the slot was never published) and the whole
// search restarts against a fresh snapshot.
//
// It reports ok=false once fewer than burstMinBits slots would remain,
// signaling the caller to burst instead.
func (b bucket) claimAndWrite(burstMinBits uint32, write func(slot uint32)) (slot uint32, ok bool) {
	for {
		cur := b.colMap()
		used := bits.OnesCount64(cur & b.activeMask())
		if b.collMax-uint32(used) <= burstMinBits {
			return 0, false
		}
		free := lowestClearBit(cur)
		if free < 0 || free >= int(b.collMax) {
			return 0, false
		}
		write(uint32(free))
		if b.arena.CASU64(b.colMapOff(), cur, cur|uint64(1)<<uint(free)) {
			return uint32(free), true
		}
	}
}

// slotIsSet reports whether slot's occupancy bit is set, per a previously
// observed snapshot of col_map (an acquire-loaded value).
func slotIsSet(colMap uint64, slot uint32) bool {
	return colMap&(uint64(1)<<slot) != 0
}

// writeMetadataOutOfLine stores {key, dataOff} into slot. Must be called
// before the slot's col_map bit is published (claimAndWrite / copy_entry's
// caller order): the plain writes here happen-before the subsequent atomic
// bit-set in program order, which is the publication point readers
// synchronize on.
func (b bucket) writeMetadataOutOfLine(slot uint32, key uint64, dataOff uint32) {
	b.arena.StoreU64(b.slotOff(slot), key)
	b.arena.StoreRef(b.slotOff(slot)+8, Ref(dataOff))
}

// writeMetadataInplace stores {key, payload} into slot.
func (b bucket) writeMetadataInplace(slot uint32, key uint64, payload []byte) {
	off := b.slotOff(slot)
	b.arena.StoreU64(off, key)
	copy(b.arena[off+8:off+8+uint64(b.recLen)], payload)
	if n := uint32(len(payload)); n < b.recLen {
		for i := off + 8 + uint64(n); i < off+8+uint64(b.recLen); i++ {
			b.arena[i] = 0
		}
	}
}

func (b bucket) slotKey(slot uint32) uint64 { return b.arena.LoadU64(b.slotOff(slot)) }

func (b bucket) slotDataOff(slot uint32) uint32 {
	return uint32(b.arena.LoadRef(b.slotOff(slot) + 8))
}

func (b bucket) slotPayload(slot uint32) []byte {
	off := b.slotOff(slot) + 8
	return b.arena[off : off+uint64(b.recLen)]
}

// claimedSlots returns the slot indices currently set in a snapshot of
// col_map, in ascending order — used by burst and remove, which both
// operate against a single point-in-time snapshot rather than a live bitmap
// (spec.md §4.6 step 2: "per current snapshot of col_map").
func claimedSlots(colMap uint64, collMax uint32) []uint32 {
	mask := colMap & ((uint64(1) << collMax) - 1)
	out := make([]uint32, 0, bits.OnesCount64(mask))
	for mask != 0 {
		i := bits.TrailingZeros64(mask)
		out = append(out, uint32(i))
		mask &^= uint64(1) << i
	}
	return out
}

// copyEntry publishes a {key, data} pair into the lowest clear slot of dst,
// which the caller must exclusively own (spec.md §4.3 copy_entry). Used
// during burst redistribution and remove's filtered copy, never on a
// bucket other goroutines can already see.
func copyEntryOutOfLine(dst bucket, key uint64, dataOff uint32) {
	free := lowestClearBit(dst.colMap())
	dst.writeMetadataOutOfLine(uint32(free), key, dataOff)
	dst.arena.testAndSetBit(dst.colMapOff(), uint(free))
}

func copyEntryInplace(dst bucket, key uint64, payload []byte) {
	free := lowestClearBit(dst.colMap())
	dst.writeMetadataInplace(uint32(free), key, payload)
	dst.arena.testAndSetBit(dst.colMapOff(), uint(free))
}
