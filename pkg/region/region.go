package region

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/natsys-lab/htriedb/pkg/htrie"
)

// Region owns a memory-mapped database file: its header and the arena bytes
// that follow it. The mapping is fixed-size for the process lifetime —
// growth is explicitly unsupported (spec.md's allocator contract assumes a
// fixed mapping).
type Region struct {
	file *os.File
	lock *os.File
	data []byte // full mapping, header included

	rootOff  uint64
	rootBits uint32
	recLen   uint32
	inplace  bool
}

// Create makes a new database file at path sized headerSize+dbSize,
// writes its header, and maps it. rootBits must be a multiple of 4 and at
// least 4; recLen is the fixed record length (0 for variable-length
// tries); inplace selects the inplace fixed-record layout.
func Create(path string, dbSize uint64, rootBits, recLen uint32, inplace bool) (*Region, error) {
	if rootBits < 4 || rootBits%4 != 0 {
		return nil, fmt.Errorf("%w: root_bits must be a positive multiple of 4", ErrInvalidInput)
	}
	if dbSize == 0 {
		return nil, fmt.Errorf("%w: db_size must be > 0", ErrInvalidInput)
	}
	if headerSize+dbSize > htrie.MaxArenaBytes() {
		return nil, fmt.Errorf("%w: db_size %d exceeds the maximum addressable arena size %d", ErrInvalidInput, dbSize, htrie.MaxArenaBytes()-headerSize)
	}

	lockFile, err := acquireLock(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		releaseLock(lockFile)
		return nil, fmt.Errorf("region: create file: %w", err)
	}

	total := int64(headerSize) + int64(dbSize)
	if err := f.Truncate(total); err != nil {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("region: truncate: %w", err)
	}

	flags := uint32(0)
	if inplace {
		flags |= flagInplace
	}
	hdr := encodeHeader(header{
		Version:  formatVersion,
		Flags:    flags,
		RecLen:   recLen,
		RootBits: rootBits,
		DBSize:   dbSize,
	})
	if _, err := f.WriteAt(hdr[:], 0); err != nil {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("region: write header: %w", err)
	}

	r, err := mapOpenFile(f, lockFile, total, rootBits, recLen, inplace)
	if err != nil {
		releaseLock(lockFile)
		return nil, err
	}
	return r, nil
}

// Open maps an existing database file at path. rootBits, recLen, and
// inplace must match the values the file was created with, or Open returns
// ErrIncompatible.
func Open(path string, rootBits, recLen uint32, inplace bool) (*Region, error) {
	lockFile, err := acquireLock(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		releaseLock(lockFile)
		return nil, fmt.Errorf("region: open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("region: stat: %w", err)
	}
	if stat.Size() < headerSize {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("%w: file shorter than header", ErrCorrupt)
	}

	hdrBuf := make([]byte, headerSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("region: read header: %w", err)
	}
	if !validMagic(hdrBuf) {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if hasReservedBytesSet(hdrBuf) {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("%w: reserved bytes set", ErrCorrupt)
	}
	stored := decodeHeader(hdrBuf)
	if stored.Version != formatVersion {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("%w: version %d", ErrIncompatible, stored.Version)
	}

	// header_crc32c is only meaningful at the instant Create wrote it — the
	// burst_collision_no_mem counter is updated in place (through
	// Config.DiagOffset) after Create, so a whole-header CRC stops matching
	// once it moves; the generation field is written once at Create and not
	// updated afterwards. Reopen validates magic, version, and
	// the immutable configuration fields instead; it does not recheck the
	// CRC (full crash-consistency validation is out of scope).
	wantFlags := uint32(0)
	if inplace {
		wantFlags |= flagInplace
	}
	if stored.Flags != wantFlags || stored.RecLen != recLen || stored.RootBits != rootBits {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("%w: header configuration mismatch", ErrIncompatible)
	}

	total := int64(headerSize) + int64(stored.DBSize)
	if stat.Size() != total {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("%w: file size %d, expected %d", ErrCorrupt, stat.Size(), total)
	}

	return mapOpenFile(f, lockFile, total, rootBits, recLen, inplace)
}

func mapOpenFile(f, lockFile *os.File, total int64, rootBits, recLen uint32, inplace bool) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("region: mmap: %w", err)
	}
	return &Region{
		file:     f,
		lock:     lockFile,
		data:     data,
		rootOff:  headerSize,
		rootBits: rootBits,
		recLen:   recLen,
		inplace:  inplace,
	}, nil
}

// Arena returns the full mapping, header included, for addressing by the
// byte offsets pkg/htrie and pkg/blockalloc use.
func (r *Region) Arena() []byte { return r.data }

// RootOff is the byte offset of the root index node, immediately after the
// fixed header.
func (r *Region) RootOff() uint64 { return r.rootOff }

// ArenaOff is the byte offset at which allocator-managed extents begin,
// immediately after the root node.
func (r *Region) ArenaOff(rootSize int) uint64 { return r.rootOff + uint64(rootSize) }

// DBSize is the usable size beyond the header, as recorded at Create time.
func (r *Region) DBSize() uint64 { return uint64(len(r.data)) - headerSize }

// DiagOffset returns the byte offset of the burst_collision_no_mem
// diagnostic counter in the header, for wiring into htrie.Config.
func (r *Region) DiagOffset() uint64 { return offBurstCollisionNoMem }

// Sync flushes the mapping to disk. Only meaningful with WritebackSync
// semantics; htriedb.Options.Writeback controls whether callers invoke it.
func (r *Region) Sync() error {
	return unix.Msync(r.data, unix.MS_SYNC)
}

// Close unmaps the file, closes both file descriptors, and releases the
// advisory lock.
func (r *Region) Close() error {
	err := unix.Munmap(r.data)
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	releaseLock(r.lock)
	return err
}

func acquireLock(path string) (*os.File, error) {
	lf, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("region: open lock file: %w", err)
	}
	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = lf.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("region: flock: %w", err)
	}
	return lf, nil
}

// releaseLock unlocks and closes the lock file. It does not delete it —
// the lock file persists across sessions, matching advisory-lock practice.
func releaseLock(lf *os.File) {
	if lf == nil {
		return
	}
	_ = unix.Flock(int(lf.Fd()), unix.LOCK_UN)
	_ = lf.Close()
}
