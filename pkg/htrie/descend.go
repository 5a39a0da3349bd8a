package htrie

// descent is the result of walking the trie for a key: either a bucket
// reference was found (Found==true, Ref is the bucket), or the walk
// stopped at a zero child slot (Found==false, Parent/Slot identify where a
// fresh bucket reference should be CAS'd in).
type descent struct {
	Parent  node
	Slot    uint32
	Bits    uint
	Ref     Ref
	Found   bool
}

// descend walks the trie by successive Bits-wide slices of key, consuming
// the root's wider first slice, then each inner node's low-to-high 4-bit
// slices (spec.md §4.4). Least-significant bits are consumed first.
func (t *Trie) descend(key uint64) descent {
	cur := t.rootNode()
	var bitsConsumed uint
	isRoot := true
	for {
		var idx uint32
		var step uint = Bits
		if isRoot {
			idx = RootSlice(key, t.rootBits)
			step = t.rootBits
		} else {
			idx = Slice(key, bitsConsumed)
		}
		ref := cur.child(idx)
		if ref.IsZero() {
			return descent{Parent: cur, Slot: idx, Bits: bitsConsumed}
		}
		if ref.IsData() {
			bitsConsumed += step
			return descent{Parent: cur, Slot: idx, Bits: bitsConsumed, Ref: ref, Found: true}
		}
		cur = t.nodeAt(ref)
		bitsConsumed += step
		isRoot = false
	}
}
