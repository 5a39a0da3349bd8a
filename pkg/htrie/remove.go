package htrie

import "fmt"

// Remove deletes every record matching key (spec.md §4.7). It reports
// ErrNotFound when no record matches key: either no bucket exists for key
// at all, or the bucket holds no slot with that key (the bucket is then
// left untouched).
func (t *Trie) Remove(key uint64) error {
	shard := t.nextShard()
	t.epoch.Enter(shard)
	defer t.epoch.Leave(shard)

	dstIdx, err := t.allocBucket(shard)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	for {
		d := t.descend(key)
		if !d.Found {
			t.pushFreeBucket(shard, dstIdx)
			return ErrNotFound
		}

		src := t.bucketAt(d.Ref)
		matched := false
		for _, slot := range claimedSlots(src.colMap(), t.collMax) {
			if src.slotKey(slot) == key {
				matched = true
				break
			}
		}
		if !matched {
			t.pushFreeBucket(shard, dstIdx)
			return ErrNotFound
		}
		dst := t.bucketAt(MakeDataRef(dstIdx))
		reclaim := t.filterCopy(dst, src, key)

		if d.Parent.casChild(d.Slot, d.Ref, MakeDataRef(dstIdx)) {
			// Close our own read section before waiting on every shard's
			// observed generation, or synchronize would spin on itself.
			t.epoch.Leave(shard)
			t.epoch.Synchronize()
			t.reclaimBucket(shard, src)
			for _, off := range reclaim {
				t.reclaimData(off)
			}
			return nil
		}

		// Lost the race: re-init dst and restart descent from scratch.
		dst.initEmpty()
	}
}

// filterCopy copies every slot of src whose key differs from target into
// dst (which the caller exclusively owns), and returns the data-unit
// offsets of the slots that matched target, for later reclamation. For
// inplace records there is no separate data chunk to reclaim.
func (t *Trie) filterCopy(dst, src bucket, target uint64) []uint32 {
	var reclaim []uint32
	for _, slot := range claimedSlots(src.colMap(), t.collMax) {
		key := src.slotKey(slot)
		if key != target {
			t.copySlotInto(dst, src, slot)
			continue
		}
		if !t.inplace {
			reclaim = append(reclaim, src.slotDataOff(slot))
		}
	}
	return reclaim
}

// reclaimBucket pushes a bucket no longer reachable from the trie onto the
// current shard's free-bucket queue. Safe only after a generation
// synchronize has elapsed, per spec.md §4.7 step 6.
func (t *Trie) reclaimBucket(shard int, b bucket) {
	t.pushFreeBucket(shard, ByteToBucketIndex(b.off))
}

// reclaimData returns a record's data chunk(s) to the appropriate
// freelist. Variable-length records walk their chunk chain; fixed
// out-of-line records are a single chunk.
func (t *Trie) reclaimData(off uint32) {
	if t.recLen > 0 {
		t.freeChunk(off, t.recLen)
		return
	}
	cur := off
	for {
		v := vrec{arena: t.arena, off: BucketByteOffset(cur)}
		next := v.chunkNext()
		size := v.length() + vrecHeaderSize
		v.markFreed()
		t.freeChunk(cur, size)
		if next == 0 {
			return
		}
		cur = next
	}
}

// freeChunk returns a chunk of size bytes starting at data-unit offset off
// to its size-class freelist, or directly to the block allocator when it
// exceeds the largest class.
func (t *Trie) freeChunk(off uint32, size uint32) {
	if class, ok := classForSize(size); ok {
		t.dcache.Push(class, BucketByteOffset(off))
		return
	}
	_ = t.alloc.FreeBlock(BucketByteOffset(off))
}
