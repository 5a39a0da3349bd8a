package htrie

import (
	"runtime"
	"sync/atomic"
)

// observedMax is the sentinel a CPU publishes when it is not inside a read
// section; it trivially satisfies any "strictly greater than" comparison a
// writer's synchronize performs.
const observedMax = ^uint64(0)

// Epoch implements the generation/quiescence reclamation scheme: a global
// generation counter plus one observed-generation slot per shard. Readers
// publish the current global generation on entry to a read section and
// observedMax on exit; a writer that unlinks something bumps the global
// counter and spins until every shard's observed value is strictly greater,
// at which point nothing still running can see the unlinked structure.
type Epoch struct {
	global   atomic.Uint64
	observed []atomic.Uint64
}

// NewEpoch creates an Epoch with the given number of shards (one per
// logical CPU, capped by the caller).
func NewEpoch(shards int) *Epoch {
	if shards < 1 {
		shards = 1
	}
	e := &Epoch{observed: make([]atomic.Uint64, shards)}
	for i := range e.observed {
		e.observed[i].Store(observedMax)
	}
	e.global.Store(0)
	return e
}

// Shards returns the number of shards this Epoch was built with.
func (e *Epoch) Shards() int { return len(e.observed) }

// Enter publishes the current global generation as shard's observed value,
// opening a read section. It returns the observed generation so callers
// (e.g. a bucket scan) can detect whether a concurrent synchronize has
// already passed them.
func (e *Epoch) Enter(shard int) uint64 {
	g := e.global.Load()
	e.observed[shard%len(e.observed)].Store(g)
	return g
}

// Leave closes shard's read section.
func (e *Epoch) Leave(shard int) {
	e.observed[shard%len(e.observed)].Store(observedMax)
}

// Synchronize bumps the global generation and spin-waits until every shard's
// observed value is strictly greater than the new generation. It has no
// timeout: the design accepts that a stuck reader blocks reclamation,
// because read sections are short and wait-free.
func (e *Epoch) Synchronize() uint64 {
	gen := e.global.Add(1)
	for i := range e.observed {
		for e.observed[i].Load() <= gen {
			runtime.Gosched()
		}
	}
	return gen
}

// Generation returns the current global generation value.
func (e *Epoch) Generation() uint64 { return e.global.Load() }
