package htrie_test

import (
	"testing"

	"github.com/natsys-lab/htriedb/pkg/blockalloc"
	"github.com/natsys-lab/htriedb/pkg/dcache"
	"github.com/natsys-lab/htriedb/pkg/htrie"
)

// trieParams configures newTestTrie; zero values pick sane defaults.
type trieParams struct {
	rootBits     uint
	collMax      uint32
	burstMinBits uint32
	inplace      bool
	recLen       uint32
	arenaSize    int
	shards       int
}

// newTestTrie wires a htrie.Trie over a plain in-memory byte slice, using
// the real blockalloc/dcache packages rather than fakes — the same wiring
// pkg/htriedb performs over an mmap'd region.
func newTestTrie(t *testing.T, p trieParams) *htrie.Trie {
	t.Helper()

	if p.rootBits == 0 {
		p.rootBits = 4
	}
	if p.collMax == 0 {
		p.collMax = 8
	}
	if p.burstMinBits == 0 {
		p.burstMinBits = 2
	}
	if p.shards == 0 {
		p.shards = 4
	}

	rootBytes := htrie.RootSize(p.rootBits) * 4
	arenaSize := p.arenaSize
	if arenaSize == 0 {
		arenaSize = rootBytes + 8<<20
	}
	buf := make([]byte, arenaSize)

	alloc := blockalloc.New(buf, uint64(rootBytes))
	dc := dcache.New(buf)

	tr, err := htrie.New(htrie.Config{
		Arena:        buf,
		RootOff:      0,
		RootBits:     p.rootBits,
		RecLen:       p.recLen,
		Inplace:      p.inplace,
		CollMax:      p.collMax,
		BurstMinBits: p.burstMinBits,
		Alloc:        alloc,
		DCache:       dc,
		Shards:       p.shards,
	})
	if err != nil {
		t.Fatalf("htrie.New: %v", err)
	}
	return tr
}
