package alloc

import (
	"math/bits"
	"sync"
	"unsafe"

	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

var (
	// ErrNotAllocated is returned when freeing a buffer that is not live in the
	// allocator: it was never allocated by it, or it was already freed.
	ErrNotAllocated error = fderrors.New(fderrors.CodeInvalidInput, "buffer was not allocated by this allocator")

	// ErrInvalidSize is returned for a non-positive allocation size.
	ErrInvalidSize error = fderrors.New(fderrors.CodeInvalidInput, "allocation size must be positive")

	// ErrInvalidAlignment is returned for an alignment that is not a power of two.
	ErrInvalidAlignment error = fderrors.New(fderrors.CodeInvalidInput, "alignment must be a power of two")
)

// Default is the allocator used by devices that are not given one.
var Default = NewAligned()

// Aligned allocates a dedicated aligned block per request.
type Aligned struct {
	mu   sync.Mutex
	live map[uintptr]int
}

// NewAligned creates an empty Aligned allocator.
func NewAligned() *Aligned {
	return &Aligned{
		live: make(map[uintptr]int),
	}
}

// Allocate returns a zeroed buffer of size bytes whose first byte is a multiple of
// alignment.
func (a *Aligned) Allocate(size, alignment int) ([]byte, error) {
	if err := validate(size, alignment); err != nil {
		return nil, err
	}

	buf := alignedBlock(size, alignment)

	a.mu.Lock()
	a.live[address(buf)] = size
	a.mu.Unlock()
	return buf, nil
}

// Free releases buf. The backing memory is reclaimed by the garbage collector
// once no references remain.
func (a *Aligned) Free(buf []byte) error {
	if len(buf) == 0 {
		return ErrNotAllocated
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	addr := address(buf)
	if _, ok := a.live[addr]; !ok {
		return ErrNotAllocated
	}
	delete(a.live, addr)
	return nil
}

// Live returns the number of buffers allocated and not yet freed.
func (a *Aligned) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// IsAligned reports whether the first byte of buf sits at a multiple of alignment.
func IsAligned(buf []byte, alignment int) bool {
	if len(buf) == 0 || alignment <= 0 {
		return false
	}
	return address(buf)&uintptr(alignment-1) == 0
}

// RoundUp rounds n up to the next multiple of alignment, which must be a power
// of two.
func RoundUp(n, alignment int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

func validate(size, alignment int) error {
	if size <= 0 {
		return ErrInvalidSize
	}
	if alignment <= 0 || bits.OnesCount(uint(alignment)) != 1 {
		return ErrInvalidAlignment
	}
	return nil
}

// alignedBlock over-allocates by alignment bytes and slices at the first aligned
// offset. The Go heap does not move objects, so the alignment holds for the life
// of the block.
func alignedBlock(size, alignment int) []byte {
	raw := make([]byte, size+alignment)
	off := 0
	if rem := int(address(raw) & uintptr(alignment-1)); rem != 0 {
		off = alignment - rem
	}
	return raw[off : off+size : off+size]
}

func address(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}
