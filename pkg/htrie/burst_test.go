package htrie_test

import (
	"fmt"
	"testing"
)

// Test_Burst_RedistributesRecords_When_ABucketOverflows uses a tuned
// burst_min_bits=2 / coll_max=6 configuration and a key pattern that forces
// repeated collisions at the root slice, driving the bucket through one or
// more burst cycles. Every inserted record must remain reachable afterward.
func Test_Burst_RedistributesRecords_When_ABucketOverflows(t *testing.T) {
	t.Parallel()

	tr := newTestTrie(t, trieParams{rootBits: 4, collMax: 6, burstMinBits: 2})

	const n = 40
	// All keys share the same low 4 bits (the root slice), forcing every
	// record into the same bucket at first; the higher bits give later
	// burst levels something to separate on.
	keyFor := func(i int) uint64 { return uint64(i)*16 + 5 }

	for i := 0; i < n; i++ {
		val := fmt.Sprintf("val-%03d", i)
		got, _, err := tr.Insert(keyFor(i), []byte(val))
		if err != nil {
			t.Fatalf("Insert(%d) failed after %d successful inserts: %v", i, i, err)
		}
		if got != len(val) {
			t.Errorf("Insert(%d) stored %d bytes, want %d", i, got, len(val))
		}
	}

	for i := 0; i < n; i++ {
		want := fmt.Sprintf("val-%03d", i)
		rec, ok := tr.Get(keyFor(i))
		if !ok {
			t.Errorf("key %d (%#x) missing after burst", i, keyFor(i))
			continue
		}
		if string(rec.Data) != want {
			t.Errorf("key %d data = %q, want %q", i, rec.Data, want)
		}
	}

	count, err := tr.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != n {
		t.Errorf("Count() = %d, want %d", count, n)
	}
}

// Test_Burst_DiagnosticCounter_NeverDecreases exercises the same colliding
// pattern and just asserts the counter behaves as a monotonic diagnostic —
// it is not required to be nonzero, since the counter moves only when a
// burst cannot allocate a sibling bucket, and this test's arena never runs
// short.
func Test_Burst_DiagnosticCounter_NeverDecreases(t *testing.T) {
	t.Parallel()

	tr := newTestTrie(t, trieParams{rootBits: 4, collMax: 6, burstMinBits: 2})

	last := tr.BurstCollisionNoMem()
	for i := 0; i < 60; i++ {
		if _, _, err := tr.Insert(uint64(i)*16+5, []byte{byte(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		cur := tr.BurstCollisionNoMem()
		if cur < last {
			t.Fatalf("BurstCollisionNoMem decreased from %d to %d", last, cur)
		}
		last = cur
	}
}

// Test_Burst_HandlesDeeperCollisions_When_SharedBitsExtendBeyondOneLevel
// forces at least two levels of burst by sharing 8 low bits (root + one
// inner level) across every key, leaving only the remaining 56 bits to
// eventually separate them.
func Test_Burst_HandlesDeeperCollisions_When_SharedBitsExtendBeyondOneLevel(t *testing.T) {
	t.Parallel()

	tr := newTestTrie(t, trieParams{rootBits: 4, collMax: 6, burstMinBits: 2})

	const n = 25
	keyFor := func(i int) uint64 { return uint64(i)*256 + 17 }

	for i := 0; i < n; i++ {
		if _, _, err := tr.Insert(keyFor(i), []byte{byte(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		rec, ok := tr.Get(keyFor(i))
		if !ok {
			t.Errorf("key index %d missing after deep burst", i)
			continue
		}
		if len(rec.Data) != 1 || rec.Data[0] != byte(i) {
			t.Errorf("key index %d data = %v, want [%d]", i, rec.Data, byte(i))
		}
	}
}
