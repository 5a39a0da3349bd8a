package blockalloc_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/natsys-lab/htriedb/pkg/blockalloc"
)

const blockSize = 4096

func Test_AllocFix_BumpsWithinABlock_When_RequestsFitTogether(t *testing.T) {
	t.Parallel()

	a := blockalloc.New(make([]byte, 4*blockSize), 0)
	var wcl uint64

	off1, err := a.AllocFix(64, &wcl)
	if err != nil {
		t.Fatalf("AllocFix: %v", err)
	}
	off2, err := a.AllocFix(64, &wcl)
	if err != nil {
		t.Fatalf("AllocFix: %v", err)
	}
	if off2 != off1+64 {
		t.Errorf("second AllocFix offset = %d, want %d (contiguous with the first)", off2, off1+64)
	}
}

func Test_AllocFix_CrossesIntoANewBlock_When_CurrentBlockCannotFitTheRequest(t *testing.T) {
	t.Parallel()

	a := blockalloc.New(make([]byte, 4*blockSize), 0)
	var wcl uint64

	// Fill the first block almost completely, then request more than what's
	// left in it.
	if _, err := a.AllocFix(blockSize-100, &wcl); err != nil {
		t.Fatalf("AllocFix: %v", err)
	}
	off, err := a.AllocFix(200, &wcl)
	if err != nil {
		t.Fatalf("AllocFix across block boundary: %v", err)
	}
	if off%blockSize != 0 {
		t.Errorf("AllocFix after crossing a block boundary returned offset %d, want a block-aligned offset", off)
	}
}

func Test_AllocData_ShrinksLength_When_RequestExceedsOneBlock(t *testing.T) {
	t.Parallel()

	a := blockalloc.New(make([]byte, 4*blockSize), 0)
	var wcl uint64

	length := uint32(blockSize + 1000)
	_, err := a.AllocData(8, &length, &wcl)
	if err != nil {
		t.Fatalf("AllocData: %v", err)
	}
	if length != blockSize {
		t.Errorf("AllocData granted length %d, want capped to %d", length, blockSize)
	}
}

func Test_AllocRollback_UndoesTheLastAllocation_When_NoConcurrentAllocHappened(t *testing.T) {
	t.Parallel()

	a := blockalloc.New(make([]byte, 4*blockSize), 0)
	var wcl uint64

	// Two allocations within the same block (wcl nonzero throughout) so the
	// rollback target isn't the "cursor is 0" sentinel, which always
	// requests a fresh block rather than rewinding within the current one.
	if _, err := a.AllocFix(100, &wcl); err != nil {
		t.Fatalf("AllocFix: %v", err)
	}
	off2, err := a.AllocFix(50, &wcl)
	if err != nil {
		t.Fatalf("AllocFix: %v", err)
	}
	a.AllocRollback(50, &wcl)

	off3, err := a.AllocFix(50, &wcl)
	if err != nil {
		t.Fatalf("AllocFix after rollback: %v", err)
	}
	if off3 != off2 {
		t.Errorf("offset after rollback+realloc = %d, want %d (the rolled-back offset reused)", off3, off2)
	}
}

func Test_AllocBlock_ReturnsDistinctAddresses_When_CalledRepeatedly(t *testing.T) {
	t.Parallel()

	a := blockalloc.New(make([]byte, 4*blockSize), 0)

	seen := make(map[uint64]bool)
	for i := 0; i < 4; i++ {
		off, err := a.AllocBlock(0, false)
		if err != nil {
			t.Fatalf("AllocBlock #%d: %v", i, err)
		}
		if seen[off] {
			t.Fatalf("AllocBlock returned offset %d twice", off)
		}
		seen[off] = true
	}

	if _, err := a.AllocBlock(0, false); !errors.Is(err, blockalloc.ErrOutOfMemory) {
		t.Errorf("AllocBlock past capacity error = %v, want ErrOutOfMemory", err)
	}
}

func Test_FreeBlock_IsReusedByAllocBlock_When_ArenaIsOtherwiseExhausted(t *testing.T) {
	t.Parallel()

	a := blockalloc.New(make([]byte, 2*blockSize), 0)

	off1, err := a.AllocBlock(0, false)
	if err != nil {
		t.Fatalf("AllocBlock: %v", err)
	}
	if _, err := a.AllocBlock(0, false); err != nil {
		t.Fatalf("AllocBlock: %v", err)
	}
	if err := a.FreeBlock(off1); err != nil {
		t.Fatalf("FreeBlock: %v", err)
	}

	reused, err := a.AllocBlock(0, false)
	if err != nil {
		t.Fatalf("AllocBlock after FreeBlock: %v", err)
	}
	if reused != off1 {
		t.Errorf("AllocBlock after exhaustion+free returned %d, want the freed block %d", reused, off1)
	}
}

func Test_ConcurrentAllocBlock_NeverIssuesOverlappingRanges_When_ManyGoroutines(t *testing.T) {
	t.Parallel()

	const blocks = 200
	a := blockalloc.New(make([]byte, blocks*blockSize), 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[uint64]int)

	const goroutines = 16
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for {
				off, err := a.AllocBlock(0, false)
				if err != nil {
					return
				}
				mu.Lock()
				seen[off]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != blocks {
		t.Errorf("AllocBlock handed out %d distinct blocks, want %d", len(seen), blocks)
	}
	for off, count := range seen {
		if count != 1 {
			t.Errorf("block %d handed out %d times, want exactly once", off, count)
		}
	}
}
