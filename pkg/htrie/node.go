package htrie

// node is a thin view over an index node's child-reference array living at
// a byte offset inside the arena. It carries no state of its own; every
// method reads through to the arena so mutation is always visible the
// instant the underlying CAS succeeds.
type node struct {
	arena Arena
	off   uint64 // byte offset of the node's first child slot
	size  int    // number of children (Fanout, or RootSize(rootBits) for root)
}

// child returns the reference stored at index i.
func (n node) child(i uint32) Ref {
	return n.arena.LoadRef(n.off + uint64(i)*4)
}

// casChild attempts to swap the reference at index i from old to new.
func (n node) casChild(i uint32, old, new Ref) bool {
	return n.arena.CASRef(n.off+uint64(i)*4, old, new)
}

// initChild stores new directly, without a CAS. Valid only before the node
// itself has been published to any other goroutine (i.e. during burst,
// while building a fresh index node that no reader can yet reach).
func (n node) initChild(i uint32, new Ref) {
	n.arena.StoreRef(n.off+uint64(i)*4, new)
}

// childOf resolves the child reference for key at a descend step that has
// already consumed bitsConsumed bits, honoring root/non-root indexing.
func (t *Trie) childOf(n node, key uint64, bitsConsumed uint, isRoot bool) (Ref, uint32) {
	var idx uint32
	if isRoot {
		idx = RootSlice(key, t.rootBits)
	} else {
		idx = Slice(key, bitsConsumed)
	}
	return n.child(idx), idx
}
