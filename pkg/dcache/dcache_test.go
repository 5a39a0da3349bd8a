package dcache_test

import (
	"sync"
	"testing"

	"github.com/natsys-lab/htriedb/pkg/dcache"
	"github.com/natsys-lab/htriedb/pkg/htrie"
)

const unitSize = 128

func Test_Empty_ReportsTrue_When_ClassHasNeverBeenPushed(t *testing.T) {
	t.Parallel()

	c := dcache.New(make([]byte, 16*unitSize))
	if !c.Empty(htrie.SizeClass256) {
		t.Errorf("Empty(SizeClass256) = false on a fresh cache, want true")
	}
}

func Test_PushThenPop_ReturnsSameOffset_When_OnlyOneEntry(t *testing.T) {
	t.Parallel()

	c := dcache.New(make([]byte, 16*unitSize))
	c.Push(htrie.SizeClass512, 3*unitSize)

	if c.Empty(htrie.SizeClass512) {
		t.Errorf("Empty(SizeClass512) = true after Push, want false")
	}

	off, ok := c.Pop(htrie.SizeClass512)
	if !ok {
		t.Fatalf("Pop(SizeClass512) = not ok, want ok")
	}
	if off != 3*unitSize {
		t.Errorf("Pop returned offset %d, want %d", off, 3*unitSize)
	}
	if !c.Empty(htrie.SizeClass512) {
		t.Errorf("Empty(SizeClass512) = false after draining the only entry, want true")
	}
}

func Test_Pop_ReturnsFalse_When_ClassIsEmpty(t *testing.T) {
	t.Parallel()

	c := dcache.New(make([]byte, 16*unitSize))
	if _, ok := c.Pop(htrie.SizeClass1K); ok {
		t.Errorf("Pop on an empty class reported ok=true")
	}
}

func Test_PushPop_IsLIFO_When_MultipleEntriesPushed(t *testing.T) {
	t.Parallel()

	c := dcache.New(make([]byte, 16*unitSize))
	offsets := []uint64{0, unitSize, 2 * unitSize, 3 * unitSize}
	for _, off := range offsets {
		c.Push(htrie.SizeClass2K, off)
	}
	for i := len(offsets) - 1; i >= 0; i-- {
		got, ok := c.Pop(htrie.SizeClass2K)
		if !ok {
			t.Fatalf("Pop failed while draining; expected offset %d", offsets[i])
		}
		if got != offsets[i] {
			t.Errorf("Pop() = %d, want %d (LIFO order)", got, offsets[i])
		}
	}
}

func Test_ConcurrentPushPop_NeverLosesOrDuplicatesEntries_When_ManyGoroutines(t *testing.T) {
	t.Parallel()

	const n = 500
	c := dcache.New(make([]byte, n*unitSize))

	// Seed the freelist with n distinct units.
	for i := 0; i < n; i++ {
		c.Push(htrie.SizeClass256, uint64(i)*unitSize)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	popped := make(map[uint64]int)

	const goroutines = 16
	perGoroutine := n / goroutines
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				off, ok := c.Pop(htrie.SizeClass256)
				if !ok {
					continue
				}
				mu.Lock()
				popped[off]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for off, count := range popped {
		if count != 1 {
			t.Errorf("offset %d popped %d times, want exactly once", off, count)
		}
	}
	if len(popped) != goroutines*perGoroutine {
		t.Errorf("popped %d distinct offsets, want %d", len(popped), goroutines*perGoroutine)
	}
}
