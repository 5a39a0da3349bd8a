package htrie

// Walk performs a depth-first traversal of the entire trie, invoking fn for
// every live record exactly once (spec.md §4.8). A non-nil error from fn
// aborts the walk and is returned as-is. Recursion is bounded by
// word_bits/Bits (MaxDepth), matching the trie's maximum possible depth.
//
// Burst can leave two distinct index slots aliased to the same physical
// bucket when a secondary redistribution pass couldn't allocate (spec.md §9
// open question 2); Walk tracks visited bucket offsets so an aliased
// bucket's records are still reported exactly once.
func (t *Trie) Walk(fn func(Record) error) error {
	visited := make(map[uint64]struct{})
	return t.walkNode(t.rootNode(), 0, visited, fn)
}

func (t *Trie) walkNode(n node, depth uint, visited map[uint64]struct{}, fn func(Record) error) error {
	for i := 0; i < n.size; i++ {
		ref := n.child(uint32(i))
		if ref.IsZero() {
			continue
		}
		if ref.IsData() {
			b := t.bucketAt(ref)
			if _, seen := visited[b.off]; seen {
				continue
			}
			visited[b.off] = struct{}{}
			colMap := b.colMap()
			for _, slot := range claimedSlots(colMap, t.collMax) {
				if err := fn(t.readRecord(b, slot)); err != nil {
					return err
				}
			}
			continue
		}
		if depth+Bits > MaxDepth*Bits {
			continue
		}
		if err := t.walkNode(t.nodeAt(ref), depth+Bits, visited, fn); err != nil {
			return err
		}
	}
	return nil
}

// Count walks the whole trie and returns the number of live records, a
// convenience used by tests asserting end-to-end record counts.
func (t *Trie) Count() (int, error) {
	n := 0
	err := t.Walk(func(Record) error {
		n++
		return nil
	})
	return n, err
}
