package archive

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

// Builder collects files and writes them as an image.
type Builder struct {
	seed      uint32
	alignment int
	files     map[string][]byte
}

// BuilderOption is a functional option for configuring a Builder.
type BuilderOption func(*Builder)

// WithSeed sets the name hash seed.
func WithSeed(seed uint32) BuilderOption {
	return func(b *Builder) {
		b.seed = seed
	}
}

// WithAlignment sets the alignment of every data blob. It must be a power of two
// no larger than MaxAlignment.
func WithAlignment(alignment int) BuilderOption {
	return func(b *Builder) {
		b.alignment = alignment
	}
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		seed:      DefaultSeed,
		alignment: DefaultAlignment,
		files:     make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add adds a file. The name is cleaned to the form devices address files by.
func (b *Builder) Add(name string, data []byte) error {
	clean := filedevice.CleanPath(name)
	if clean == "" {
		return fderrors.New(fderrors.CodeInvalidInput, fmt.Sprintf("archive: invalid entry name %q", name))
	}
	if _, exists := b.files[clean]; exists {
		return fderrors.New(fderrors.CodeAlreadyExists, fmt.Sprintf("archive: duplicate entry %q", clean))
	}
	if uint64(len(data)) > math.MaxUint32 {
		return fderrors.New(fderrors.CodeOutOfRange, fmt.Sprintf("archive: entry %q exceeds 4GiB", clean))
	}
	b.files[clean] = data
	return nil
}

// AddFS adds every regular file below root in fsys, named relative to root.
func (b *Builder) AddFS(fsys billy.Filesystem, root string) error {
	err := util.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		data, err := util.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path.Clean("/"+p), path.Clean("/"+root))
		return b.Add(rel, data)
	})
	if err != nil {
		return fmt.Errorf("archive: walk %q: %w", root, err)
	}
	return nil
}

// Len returns the number of files added.
func (b *Builder) Len() int {
	return len(b.files)
}

// Bytes returns the image.
func (b *Builder) Bytes() ([]byte, error) {
	if b.alignment <= 0 || b.alignment > MaxAlignment || bits.OnesCount(uint(b.alignment)) != 1 {
		return nil, fmt.Errorf("archive: alignment %d: %w", b.alignment, filedevice.ErrInvalidAlignment)
	}

	type item struct {
		hash uint32
		name string
		data []byte
	}
	items := make([]item, 0, len(b.files))
	for name, data := range b.files {
		items = append(items, item{hash: HashName(name, b.seed), name: name, data: data})
	}
	slices.SortFunc(items, func(x, y item) int {
		switch {
		case less(x.hash, x.name, y.hash, y.name):
			return -1
		case less(y.hash, y.name, x.hash, x.name):
			return 1
		default:
			return 0
		}
	})

	var names bytes.Buffer
	entries := make([]rawEntry, len(items))
	for i, it := range items {
		entries[i].hash = it.hash
		entries[i].nameOff = uint32(names.Len())
		names.WriteString(it.name)
		names.WriteByte(0)
	}

	tableEnd := headerSize + entrySize*len(items)
	dataOffset := alignUp(tableEnd+names.Len(), b.alignment)

	var dataLen int
	for i, it := range items {
		dataLen = alignUp(dataLen, b.alignment)
		entries[i].dataOff = uint32(dataLen)
		entries[i].size = uint32(len(it.data))
		dataLen += len(it.data)
	}
	if uint64(dataOffset)+uint64(dataLen) > math.MaxUint32 {
		return nil, fderrors.New(fderrors.CodeOutOfRange, "archive: image exceeds 4GiB")
	}

	image := make([]byte, dataOffset+dataLen)
	h := header{
		version:    Version,
		count:      uint32(len(items)),
		seed:       b.seed,
		alignment:  uint32(b.alignment),
		dataOffset: uint32(dataOffset),
	}
	h.put(image[:headerSize])
	for i := range entries {
		off := headerSize + i*entrySize
		entries[i].put(image[off : off+entrySize])
	}
	copy(image[tableEnd:], names.Bytes())
	for i, it := range items {
		copy(image[dataOffset+int(entries[i].dataOff):], it.data)
	}
	return image, nil
}

// WriteTo writes the image to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	image, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(image)
	if err != nil {
		return int64(n), fmt.Errorf("archive: write image: %w", err)
	}
	return int64(n), nil
}

func alignUp(n, alignment int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}
