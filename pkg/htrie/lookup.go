package htrie

// Record is a live record returned by a bucket scan: its key and the bytes
// stored for it (for variable-length records, the full concatenated chain).
type Record struct {
	Key  uint64
	Data []byte
}

// Handle is a bucket reached by Lookup, held open under a generation guard.
// Callers must call Release exactly once when done with it.
type Handle struct {
	t        *Trie
	shard    int
	bucket   bucket
	released bool
}

// Lookup publishes this goroutine's observed generation and descends to the
// bucket holding key, if any. ok is false if no bucket exists for key at
// all (not whether a matching record is present within it — use Scan for
// that). The returned Handle must be released.
func (t *Trie) Lookup(key uint64) (h *Handle, ok bool) {
	shard := t.nextShard()
	t.epoch.Enter(shard)
	d := t.descend(key)
	if !d.Found {
		t.epoch.Leave(shard)
		return nil, false
	}
	return &Handle{t: t, shard: shard, bucket: t.bucketAt(d.Ref)}, true
}

// Release closes the generation guard opened by Lookup. Safe to call more
// than once.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.t.epoch.Leave(h.shard)
}

// Scan performs spec.md §4.8's bucket_scan: a linear search starting at
// slot *i for the first occupied slot whose key equals key. On a match it
// updates *i to the matching slot and returns the record; callers wanting
// further matches must increment *i before calling again.
func (h *Handle) Scan(key uint64, i *uint32) (Record, bool) {
	colMap := h.bucket.colMap()
	for s := *i; s < h.t.collMax; s++ {
		if !slotIsSet(colMap, s) {
			continue
		}
		if h.bucket.slotKey(s) != key {
			continue
		}
		*i = s
		return h.t.readRecord(h.bucket, s), true
	}
	return Record{}, false
}

// ScanRef behaves like Scan but returns a RecordRef instead of a materialized
// Record, for callers that want to Extend a variable-length record they
// re-acquired through Lookup rather than one just returned by Insert. The
// ref is only valid (and only needed) for variable-length records.
func (h *Handle) ScanRef(key uint64, i *uint32) (RecordRef, bool) {
	colMap := h.bucket.colMap()
	for s := *i; s < h.t.collMax; s++ {
		if !slotIsSet(colMap, s) {
			continue
		}
		if h.bucket.slotKey(s) != key {
			continue
		}
		*i = s
		if h.t.inplace || h.t.recLen > 0 {
			return RecordRef{}, true
		}
		return RecordRef{dataOff: h.bucket.slotDataOff(s), valid: true}, true
	}
	return RecordRef{}, false
}

// readRecord materializes the record stored at bucket slot s.
func (t *Trie) readRecord(b bucket, s uint32) Record {
	key := b.slotKey(s)
	if t.inplace {
		payload := make([]byte, len(b.slotPayload(s)))
		copy(payload, b.slotPayload(s))
		return Record{Key: key, Data: payload}
	}
	off := b.slotDataOff(s)
	if t.recLen > 0 {
		base := BucketByteOffset(off)
		payload := make([]byte, t.recLen)
		copy(payload, t.arena[base:base+uint64(t.recLen)])
		return Record{Key: key, Data: payload}
	}
	return Record{Key: key, Data: t.collectChain(off)}
}

// collectChain concatenates a variable-length record's chunk chain starting
// at data-unit offset off.
func (t *Trie) collectChain(off uint32) []byte {
	var buf []byte
	cur := off
	for {
		v := vrec{arena: t.arena, off: BucketByteOffset(cur)}
		buf = append(buf, v.payload()...)
		next := v.chunkNext()
		if next == 0 {
			break
		}
		cur = next
	}
	return buf
}

// Get is a convenience wrapper for the common case of wanting the first
// matching record for key, releasing the handle itself.
func (t *Trie) Get(key uint64) (Record, bool) {
	h, ok := t.Lookup(key)
	if !ok {
		return Record{}, false
	}
	defer h.Release()
	var i uint32
	return h.Scan(key, &i)
}
