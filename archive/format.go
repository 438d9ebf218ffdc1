// Package archive implements packed archive images and a read-only file device
// serving them.
//
// An image is little-endian and laid out as
//
//	header     24 bytes
//	entries    16 bytes each, sorted by (hash, name)
//	names      NUL-terminated entry names
//	data       file contents, each blob aligned to the image alignment
//
// The header holds the magic "FPAK", a format version, the entry count, the
// seed of the murmur3 name hash, the data alignment and the offset of the data
// section. An entry holds the name hash, the offset of the name within the name
// table, the offset of the data within the data section and the data size.
package archive

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

const (
	// Magic opens every image.
	Magic = "FPAK"

	// Version is the format version written by Builder.
	Version = 1

	// DefaultAlignment is the data alignment used when none is configured.
	DefaultAlignment = 64

	// MaxAlignment is the largest data alignment an image may declare.
	MaxAlignment = 1 << 20

	// DefaultSeed is the name hash seed used when none is configured.
	DefaultSeed = 0x9747b28c

	headerSize = 24
	entrySize  = 16
)

// ErrFormat is returned when an image is malformed.
var ErrFormat error = fderrors.New(fderrors.CodeInvalidInput, "malformed archive image")

type header struct {
	version    uint16
	count      uint32
	seed       uint32
	alignment  uint32
	dataOffset uint32
}

func (h *header) put(b []byte) {
	copy(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], h.version)
	binary.LittleEndian.PutUint16(b[6:8], 0)
	binary.LittleEndian.PutUint32(b[8:12], h.count)
	binary.LittleEndian.PutUint32(b[12:16], h.seed)
	binary.LittleEndian.PutUint32(b[16:20], h.alignment)
	binary.LittleEndian.PutUint32(b[20:24], h.dataOffset)
}

func readHeader(b []byte) header {
	return header{
		version:    binary.LittleEndian.Uint16(b[4:6]),
		count:      binary.LittleEndian.Uint32(b[8:12]),
		seed:       binary.LittleEndian.Uint32(b[12:16]),
		alignment:  binary.LittleEndian.Uint32(b[16:20]),
		dataOffset: binary.LittleEndian.Uint32(b[20:24]),
	}
}

type rawEntry struct {
	hash    uint32
	nameOff uint32
	dataOff uint32
	size    uint32
}

func (e *rawEntry) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], e.hash)
	binary.LittleEndian.PutUint32(b[4:8], e.nameOff)
	binary.LittleEndian.PutUint32(b[8:12], e.dataOff)
	binary.LittleEndian.PutUint32(b[12:16], e.size)
}

func readEntry(b []byte) rawEntry {
	return rawEntry{
		hash:    binary.LittleEndian.Uint32(b[0:4]),
		nameOff: binary.LittleEndian.Uint32(b[4:8]),
		dataOff: binary.LittleEndian.Uint32(b[8:12]),
		size:    binary.LittleEndian.Uint32(b[12:16]),
	}
}

// HashName returns the hash an image with the given seed stores for name.
func HashName(name string, seed uint32) uint32 {
	return murmur3.Sum32WithSeed([]byte(name), seed)
}

// less orders entries by hash, then name.
func less(hashA uint32, nameA string, hashB uint32, nameB string) bool {
	if hashA != hashB {
		return hashA < hashB
	}
	return nameA < nameB
}
