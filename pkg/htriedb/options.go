package htriedb

// WritebackMode controls whether Close flushes the mapping to disk before
// unmapping, mirroring the teacher's WritebackNone/WritebackSync split.
type WritebackMode int

const (
	// WritebackNone leaves durability to the OS's normal page writeback.
	WritebackNone WritebackMode = iota
	// WritebackSync calls msync(MS_SYNC) during Close.
	WritebackSync
)

// Options configures Open, mirroring the teacher's Options construction
// style: a single struct covering both creation and validation-on-reopen.
type Options struct {
	// Path is the database file path. A lock file is also created at
	// Path+".lock".
	Path string

	// DBSize is the arena size beyond the header; the root node and all
	// allocations live inside it. Used only when creating a new file.
	DBSize uint64

	// RootBits is the number of key bits the root node's wider fanout
	// consumes. Must be a positive multiple of 4.
	RootBits uint32

	// RecLen is the fixed record length. 0 selects the variable-length
	// (VRec chunk chain) regime.
	RecLen uint32

	// Inplace selects the fixed-inplace record layout; requires RecLen > 0.
	Inplace bool

	// CollMax is the bucket slot capacity.
	CollMax uint32

	// BurstMinBits is the minimum free slots a bucket retains before it is
	// considered full and must burst.
	BurstMinBits uint32

	// Shards overrides the per-CPU shard count; 0 defaults to
	// runtime.GOMAXPROCS(0).
	Shards int

	// Writeback controls Close's durability behavior.
	Writeback WritebackMode
}
