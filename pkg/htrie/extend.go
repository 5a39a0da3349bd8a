package htrie

import "fmt"

// Extend appends data as a new chunk to the chain of a variable-length
// record identified by ref (spec.md §4.9). The caller is expected to be the
// sole appender of this particular record, but concurrent appenders are
// tolerated: losing the publishing race just means retrying against
// whatever the winner left as the new tail.
//
// Extend is only meaningful for variable-length records (recLen == 0 and
// not inplace); calling it on any other layout is a usage error, since
// those layouts have no chain to append to.
func (t *Trie) Extend(ref RecordRef, data []byte) (int, error) {
	if t.inplace || t.recLen > 0 {
		return 0, fmt.Errorf("%w: extend requires a variable-length trie", ErrInvalidUsage)
	}
	if !ref.valid {
		return 0, fmt.Errorf("%w: invalid record reference", ErrInvalidUsage)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty extend", ErrInvalidUsage)
	}

	shard := t.nextShard()
	t.epoch.Enter(shard)
	defer t.epoch.Leave(shard)

	chunkOff, granted, err := t.allocVariableData(shard, uint32(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	v := vrec{arena: t.arena, off: BucketByteOffset(chunkOff)}
	copy(v.payload(), data)

	cur := ref.dataOff
	for {
		tail, tailOff := t.findTail(cur)
		if tail.casChunkNext(0, chunkOff) {
			return int(granted), nil
		}
		// Someone else published a new tail first; resume the walk from the
		// chunk we just lost the race on and retry against the new tail.
		cur = tailOff
	}
}

// findTail walks a chunk chain starting at data-unit offset off and returns
// the last chunk together with its own data-unit offset.
func (t *Trie) findTail(off uint32) (vrec, uint32) {
	cur := off
	for {
		v := vrec{arena: t.arena, off: BucketByteOffset(cur)}
		next := v.chunkNext()
		if next == 0 {
			return v, cur
		}
		cur = next
	}
}
