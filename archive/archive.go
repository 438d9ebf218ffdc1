package archive

import (
	"bytes"
	"fmt"
	"math/bits"
	"slices"
	"sort"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

// Archive is a parsed image. Entry data aliases the image, which must not be
// modified while the Archive is in use.
type Archive struct {
	image     []byte
	seed      uint32
	alignment int
	entries   []entry

	// names holds the entry names in lexical order.
	names []string
}

type entry struct {
	hash uint32
	name string
	data []byte
}

// Parse validates image and indexes its entries.
func Parse(image []byte) (*Archive, error) {
	if len(image) < headerSize {
		return nil, formatError("image of %d bytes is shorter than the header", len(image))
	}
	if string(image[:4]) != Magic {
		return nil, formatError("bad magic %q", image[:4])
	}

	h := readHeader(image)
	if h.version != Version {
		return nil, formatError("unsupported version %d", h.version)
	}
	if err := checkAlignment(h.alignment); err != nil {
		return nil, err
	}

	tableEnd := uint64(headerSize) + uint64(entrySize)*uint64(h.count)
	dataOffset := uint64(h.dataOffset)
	if tableEnd > dataOffset || dataOffset > uint64(len(image)) {
		return nil, formatError("entry table of %d entries overruns data offset %d", h.count, h.dataOffset)
	}

	nameTable := image[tableEnd:dataOffset]
	a := &Archive{
		image:     image,
		seed:      h.seed,
		alignment: int(h.alignment),
		entries:   make([]entry, h.count),
		names:     make([]string, h.count),
	}

	for i := range a.entries {
		off := headerSize + i*entrySize
		raw := readEntry(image[off : off+entrySize])

		if uint64(raw.nameOff) >= uint64(len(nameTable)) {
			return nil, formatError("entry %d: name offset %d out of range", i, raw.nameOff)
		}
		end := bytes.IndexByte(nameTable[raw.nameOff:], 0)
		if end < 0 {
			return nil, formatError("entry %d: unterminated name", i)
		}
		name := string(nameTable[raw.nameOff : int(raw.nameOff)+end])

		start := dataOffset + uint64(raw.dataOff)
		stop := start + uint64(raw.size)
		if stop > uint64(len(image)) {
			return nil, formatError("entry %q: data [%d, %d) out of range", name, start, stop)
		}
		if HashName(name, h.seed) != raw.hash {
			return nil, formatError("entry %q: hash mismatch", name)
		}
		if i > 0 {
			prev := a.entries[i-1]
			if !less(prev.hash, prev.name, raw.hash, name) {
				return nil, formatError("entry %q: table not sorted", name)
			}
		}

		a.entries[i] = entry{hash: raw.hash, name: name, data: image[start:stop:stop]}
		a.names[i] = name
	}

	slices.Sort(a.names)
	return a, nil
}

// Lookup returns the data stored for name, which is cleaned first.
func (a *Archive) Lookup(name string) ([]byte, bool) {
	name = filedevice.CleanPath(name)
	hash := HashName(name, a.seed)
	i := sort.Search(len(a.entries), func(i int) bool {
		e := a.entries[i]
		return !less(e.hash, e.name, hash, name)
	})
	if i < len(a.entries) && a.entries[i].hash == hash && a.entries[i].name == name {
		return a.entries[i].data, true
	}
	return nil, false
}

// IsDir reports whether name is a directory prefix of some entry.
func (a *Archive) IsDir(name string) bool {
	name = filedevice.CleanPath(name)
	prefix := name + "/"
	if name == "" {
		return len(a.names) > 0
	}
	i := sort.SearchStrings(a.names, prefix)
	return i < len(a.names) && strings.HasPrefix(a.names[i], prefix)
}

// Names returns the entry names in lexical order.
func (a *Archive) Names() []string {
	return slices.Clone(a.names)
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Alignment returns the data alignment of the image.
func (a *Archive) Alignment() int {
	return a.alignment
}

// Image returns the raw image the archive was parsed from.
func (a *Archive) Image() []byte {
	return a.image
}

// checkAlignment rejects header alignments that are not powers of two or
// exceed MaxAlignment.
func checkAlignment(alignment uint32) error {
	switch {
	case alignment == 0 || bits.OnesCount32(alignment) != 1:
		return formatError("alignment %d is not a power of two", alignment)
	case alignment > MaxAlignment:
		return formatError("alignment %d exceeds %d", alignment, MaxAlignment)
	}
	return nil
}

func formatError(format string, args ...any) error {
	return fmt.Errorf("archive: %s: %w", fmt.Sprintf(format, args...), ErrFormat)
}
