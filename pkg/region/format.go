package region

import (
	"encoding/binary"
	"hash/crc32"
)

// TDBM1 file header. Cache-line sized (64 bytes) so the root node begins on
// its own cache line immediately after it.
const (
	magic         = "TDBM"
	formatVersion = 1
	headerSize    = 64

	flagInplace = uint32(1) << 0
)

// Header field offsets (bytes from file start). The three uint64 fields sit
// on 8-byte boundaries (0x18/0x20/0x28, leaving a 4-byte pad after
// root_bits) so htrie can address the burst_collision_no_mem counter with
// sync/atomic's 64-bit ops directly — those require natural alignment,
// which a tightly-packed layout starting the first uint64 at 0x14 would
// have violated.
const (
	offMagic               = 0x00 // [4]byte
	offVersion             = 0x04 // uint32
	offFlags               = 0x08 // uint32
	offRecLen              = 0x0C // uint32
	offRootBits            = 0x10 // uint32
	// 0x14..0x17 padding.
	offDBSize              = 0x18 // uint64
	offGeneration          = 0x20 // uint64
	offBurstCollisionNoMem = 0x28 // uint64
	offHeaderCRC32C        = 0x30 // uint32
	// 0x34..0x3F reserved, must be zero.
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// header mirrors the on-disk TDBM1 layout.
type header struct {
	Version             uint32
	Flags               uint32
	RecLen              uint32
	RootBits            uint32
	DBSize              uint64
	Generation          uint64
	BurstCollisionNoMem uint64
}

func encodeHeader(h header) [headerSize]byte {
	var buf [headerSize]byte
	copy(buf[offMagic:], magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], h.Version)
	binary.LittleEndian.PutUint32(buf[offFlags:], h.Flags)
	binary.LittleEndian.PutUint32(buf[offRecLen:], h.RecLen)
	binary.LittleEndian.PutUint32(buf[offRootBits:], h.RootBits)
	binary.LittleEndian.PutUint64(buf[offDBSize:], h.DBSize)
	binary.LittleEndian.PutUint64(buf[offGeneration:], h.Generation)
	binary.LittleEndian.PutUint64(buf[offBurstCollisionNoMem:], h.BurstCollisionNoMem)
	binary.LittleEndian.PutUint32(buf[offHeaderCRC32C:], computeHeaderCRC(buf[:]))
	return buf
}

func decodeHeader(buf []byte) header {
	return header{
		Version:             binary.LittleEndian.Uint32(buf[offVersion:]),
		Flags:               binary.LittleEndian.Uint32(buf[offFlags:]),
		RecLen:              binary.LittleEndian.Uint32(buf[offRecLen:]),
		RootBits:            binary.LittleEndian.Uint32(buf[offRootBits:]),
		DBSize:              binary.LittleEndian.Uint64(buf[offDBSize:]),
		Generation:          binary.LittleEndian.Uint64(buf[offGeneration:]),
		BurstCollisionNoMem: binary.LittleEndian.Uint64(buf[offBurstCollisionNoMem:]),
	}
}

// computeHeaderCRC checksums the header with the CRC field itself zeroed.
// Generation is written once at Create; burst_collision_no_mem is updated in
// place afterwards, so the stored CRC matches only the header as Create wrote
// it, and Open does not recheck it.
func computeHeaderCRC(buf []byte) uint32 {
	tmp := make([]byte, headerSize)
	copy(tmp, buf)
	for i := offHeaderCRC32C; i < offHeaderCRC32C+4; i++ {
		tmp[i] = 0
	}
	return crc32.Checksum(tmp, crcTable)
}

func validMagic(buf []byte) bool {
	return string(buf[offMagic:offMagic+4]) == magic
}

func hasReservedBytesSet(buf []byte) bool {
	for i := 0x34; i < headerSize; i++ {
		if buf[i] != 0 {
			return true
		}
	}
	return false
}
