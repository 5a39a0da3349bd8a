package htrie

import "math/bits"

const (
	// CacheLine is the unit index offsets are counted in.
	CacheLine = 64
	// MinDRec is the unit data/bucket offsets are counted in: two cache lines,
	// the smallest region an out-of-line record or a bucket can occupy.
	MinDRec = 2 * CacheLine

	// Bits is the number of key bits consumed per trie level.
	Bits = 4
	// Fanout is the number of children of a non-root index node.
	Fanout = 1 << Bits
	// sliceMask extracts the low Bits bits used to index a non-root node.
	sliceMask = Fanout - 1

	// dataBit marks a stored 32-bit reference as pointing into the bucket
	// (data) world rather than at an inner index node.
	dataBit    = uint32(1) << 31
	offsetMask = dataBit - 1

	// KeyBits is the width of a key in bits; depth is bounded by KeyBits/Bits.
	KeyBits = 64
	// MaxDepth is the maximum number of descend steps before RESOLVED(bits).
	MaxDepth = KeyBits / Bits
)

// Ref is a stored 32-bit trie reference: either an index-node offset (data
// bit clear) or a bucket offset (data bit set), both expressed in the
// reference's own base unit. Zero means absent.
type Ref uint32

// IsZero reports whether the reference is the "absent" sentinel.
func (r Ref) IsZero() bool { return r == 0 }

// IsData reports whether r points at a bucket rather than an index node.
func (r Ref) IsData() bool { return uint32(r)&dataBit != 0 }

// Index returns the unit-offset index carried by r, with the data bit
// stripped.
func (r Ref) Index() uint32 { return uint32(r) &^ dataBit }

// MakeDataRef builds a reference to the bucket at unit-offset idx.
func MakeDataRef(idx uint32) Ref { return Ref(idx | dataBit) }

// MakeNodeRef builds a reference to the index node at unit-offset idx.
func MakeNodeRef(idx uint32) Ref { return Ref(idx &^ dataBit) }

// NodeByteOffset converts an index-node unit offset to a byte offset.
func NodeByteOffset(idx uint32) uint64 { return uint64(idx) * CacheLine }

// BucketByteOffset converts a bucket unit offset to a byte offset.
func BucketByteOffset(idx uint32) uint64 { return uint64(idx) * MinDRec }

// ByteToNodeIndex converts a byte offset (must be cache-line aligned) to an
// index-node unit offset.
func ByteToNodeIndex(off uint64) uint32 { return uint32(off / CacheLine) }

// ByteToBucketIndex converts a byte offset (must be MinDRec aligned) to a
// bucket unit offset.
func ByteToBucketIndex(off uint64) uint32 { return uint32(off / MinDRec) }

// RootSize returns the number of child slots in the root node for the given
// root_bits configuration (N_root = 2^root_bits).
func RootSize(rootBits uint) int { return 1 << rootBits }

// MaxArenaBytes is the largest arena this trie's 31-bit unit-index
// encoding (dataBit/offsetMask above) can address (spec.md's "db_size
// exceeds shard max" init error). Index nodes are addressed in CacheLine
// units and buckets in the larger MinDRec units, so a node offset's unit
// index overflows offsetMask at a smaller byte size than a bucket
// offset's would — it's the binding constraint.
func MaxArenaBytes() uint64 { return uint64(offsetMask) * CacheLine }

// RootMask returns the mask used to index the root node directly from the
// key's low bits.
func RootMask(rootBits uint) uint64 { return (uint64(1) << rootBits) - 1 }

// Resolved reports whether consuming another Bits-wide slice at the given
// consumed-bit count would exceed the key's width — i.e. no more entropy is
// available and a full bucket can no longer be burst further.
func Resolved(bitsConsumed uint) bool { return bitsConsumed+Bits > KeyBits }

// Slice extracts the child index at a non-root node for a descend step that
// has already consumed bitsConsumed bits of the key.
func Slice(key uint64, bitsConsumed uint) uint32 {
	return uint32((key >> bitsConsumed) & sliceMask)
}

// RootSlice extracts the root-node child index directly from the key's low
// root_bits bits.
func RootSlice(key uint64, rootBits uint) uint32 {
	return uint32(key & RootMask(rootBits))
}

// lowestClearBit returns the index of the lowest zero bit of x, or 64 if x
// is all ones. Mirrors the "count_trailing_ones(~x)" primitive spec.md
// calls for: ctz of the complement finds the first zero of x.
func lowestClearBit(x uint64) int { return bits.TrailingZeros64(^x) }
