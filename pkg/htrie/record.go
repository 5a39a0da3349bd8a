package htrie

// vrecHeaderSize is the byte size of a variable-length record chunk header:
// {chunk_next uint32, len uint32}.
const vrecHeaderSize = 4 + 4

// vrecFreedFlag is the high bit of a VRec chunk's len field, marking the
// chunk as logically freed (awaiting reclamation).
const vrecFreedFlag = uint32(1) << 31

// vrec is a view over one chunk of a variable-length record's chain.
type vrec struct {
	arena Arena
	off   uint64 // byte offset of the chunk header
}

func (v vrec) chunkNextOff() uint64 { return v.off }
func (v vrec) lenOff() uint64       { return v.off + 4 }

// chunkNext returns the data-unit offset of the next chunk, or 0 if this is
// the tail.
func (v vrec) chunkNext() uint32 { return uint32(v.arena.LoadRef(v.chunkNextOff())) }

// casChunkNext CAS's chunk_next from old to new (spec.md §4.9 extend).
func (v vrec) casChunkNext(old, new uint32) bool {
	return v.arena.CASRef(v.chunkNextOff(), Ref(old), Ref(new))
}

func (v vrec) length() uint32 {
	return uint32(v.arena.LoadRef(v.lenOff())) &^ vrecFreedFlag
}

func (v vrec) freed() bool {
	return uint32(v.arena.LoadRef(v.lenOff()))&vrecFreedFlag != 0
}

func (v vrec) markFreed() {
	l := uint32(v.arena.LoadRef(v.lenOff()))
	v.arena.StoreRef(v.lenOff(), Ref(l|vrecFreedFlag))
}

func (v vrec) init(next uint32, length uint32) {
	v.arena.StoreRef(v.chunkNextOff(), Ref(next))
	v.arena.StoreRef(v.lenOff(), Ref(length))
}

func (v vrec) payload() []byte {
	start := v.off + vrecHeaderSize
	return v.arena[start : start+uint64(v.length())]
}
