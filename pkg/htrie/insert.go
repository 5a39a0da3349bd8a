package htrie

import "fmt"

// RecordRef identifies a variable-length record's first chunk, letting a
// caller append to it later with Extend. It is meaningless (and unused) for
// inplace or fixed out-of-line records.
type RecordRef struct {
	dataOff uint32
	valid   bool
}

// Insert writes a new record under key. data must be non-empty. On success
// it returns the number of bytes actually stored, which may be smaller than
// len(data) when the allocator granted less than requested for a
// variable-length record, plus a RecordRef usable with Extend. Duplicate
// keys are permitted — a second Insert with the same key adds another
// record rather than replacing one.
func (t *Trie) Insert(key uint64, data []byte) (int, RecordRef, error) {
	if len(data) == 0 {
		return 0, RecordRef{}, fmt.Errorf("%w: empty insert", ErrInvalidUsage)
	}
	if (t.inplace || t.recLen > 0) && uint32(len(data)) > t.recLen {
		return 0, RecordRef{}, fmt.Errorf("%w: data longer than rec_len", ErrInvalidUsage)
	}

	shard := t.nextShard()
	t.epoch.Enter(shard)
	defer t.epoch.Leave(shard)

	dataOff, storedLen, payload, err := t.allocRecordData(shard, data)
	if err != nil {
		return 0, RecordRef{}, err
	}
	ref := RecordRef{dataOff: dataOff, valid: !t.inplace && t.recLen == 0}

	for {
		d := t.descend(key)

		if !d.Found {
			bucketIdx, err := t.allocBucket(shard)
			if err != nil {
				t.rollbackRecordData(shard, storedLen)
				return 0, RecordRef{}, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
			}
			nb := t.bucketAt(MakeDataRef(bucketIdx))
			nb.claimAndWrite(t.burstMin, func(slot uint32) {
				t.writeSlotMeta(nb, slot, key, dataOff, payload)
			})
			if !d.Parent.casChild(d.Slot, 0, MakeDataRef(bucketIdx)) {
				t.rollbackBucket(shard)
				continue
			}
			return int(storedLen), ref, nil
		}

		b := t.bucketAt(d.Ref)
		if _, ok := b.claimAndWrite(t.burstMin, func(slot uint32) {
			t.writeSlotMeta(b, slot, key, dataOff, payload)
		}); ok {
			return int(storedLen), ref, nil
		}

		if Resolved(d.Bits) {
			t.rollbackRecordData(shard, storedLen)
			return 0, RecordRef{}, ErrNoSpace
		}
		if err := t.burst(shard, d.Ref, d.Parent, d.Slot, d.Bits); err != nil {
			t.rollbackRecordData(shard, storedLen)
			return 0, RecordRef{}, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		// Retry: burst either installed a new index node (possibly deeper
		// descent will reach the same, still-full bucket and burst again)
		// or lost its publishing race to another writer.
	}
}

// writeSlotMeta writes key/data into a newly-claimed slot of b, branching
// on the trie's record layout.
func (t *Trie) writeSlotMeta(b bucket, slot uint32, key uint64, dataOff uint32, payload []byte) {
	if t.inplace {
		b.writeMetadataInplace(slot, key, payload)
	} else {
		b.writeMetadataOutOfLine(slot, key, dataOff)
	}
}

// allocRecordData allocates storage for data according to the trie's
// record layout and returns the data-unit offset (unused for inplace), the
// number of bytes actually stored, and the payload to embed directly for
// inplace records.
func (t *Trie) allocRecordData(shard int, data []byte) (dataOff uint32, storedLen uint32, payload []byte, err error) {
	switch {
	case t.inplace:
		return 0, uint32(len(data)), data, nil

	case t.recLen > 0:
		off, aerr := t.allocFixedData(shard)
		if aerr != nil {
			return 0, 0, nil, fmt.Errorf("%w: %v", ErrOutOfMemory, aerr)
		}
		base := BucketByteOffset(off)
		dst := t.arena[base : base+uint64(t.recLen)]
		n := copy(dst, data)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		return off, uint32(len(data)), nil, nil

	default:
		off, granted, aerr := t.allocVariableData(shard, uint32(len(data)))
		if aerr != nil {
			return 0, 0, nil, fmt.Errorf("%w: %v", ErrOutOfMemory, aerr)
		}
		v := vrec{arena: t.arena, off: BucketByteOffset(off)}
		copy(v.payload(), data)
		return off, granted, nil, nil
	}
}

// rollbackRecordData undoes the allocation made by allocRecordData. Sized
// to the actual data region per spec.md §9 open question 3, not the bucket
// size.
func (t *Trie) rollbackRecordData(shard int, storedLen uint32) {
	switch {
	case t.inplace:
		return
	case t.recLen > 0:
		t.rollbackData(shard, t.recLen)
	default:
		t.rollbackData(shard, storedLen+vrecHeaderSize)
	}
}
