package filedevice

import (
	"math"
	"math/bits"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
)

// MinAlignment is the default and smallest alignment of buffers allocated by Load.
const MinAlignment = 64

// LoadArg describes a bulk-load and receives its results.
type LoadArg struct {
	// Path is the file to load.
	Path string

	// Buffer is an optional destination supplied by the caller. When set, Load
	// reads into it without allocating and fails if it is smaller than the file.
	Buffer []byte

	// Alignment is the required alignment of an allocated buffer. Zero means
	// MinAlignment; smaller powers of two are raised to MinAlignment.
	Alignment int

	// ReadSize is set to the number of file bytes read.
	ReadSize int64

	// RoundupSize is set to the length of the returned buffer: the file size
	// rounded up to the alignment for allocated buffers, len(Buffer) otherwise.
	RoundupSize int64

	// NeedUnload is set when the returned buffer was allocated by the device and
	// must be released with Unload.
	NeedUnload bool
}

func (arg *LoadArg) alignment() (int, error) {
	a := arg.Alignment
	if a == 0 {
		return MinAlignment, nil
	}
	if a < 0 || bits.OnesCount(uint(a)) != 1 {
		return 0, ErrInvalidAlignment
	}
	return max(a, MinAlignment), nil
}

func (arg *LoadArg) resetResults() {
	arg.ReadSize = 0
	arg.RoundupSize = 0
	arg.NeedUnload = false
}

// Load reads the whole file at arg.Path into a buffer and returns it. The file
// bytes are buf[:arg.ReadSize]. When arg.NeedUnload is set the caller owns the
// buffer and must release it exactly once with Unload; otherwise the buffer is
// arg.Buffer and stays the caller's.
//
// Load leaves no handle open and no allocation behind when it fails.
func (d *Device) Load(arg *LoadArg) ([]byte, error) {
	if arg == nil {
		return nil, wrapOp("load", d.DriveName(), "", ErrInvalidLoadArg)
	}
	arg.resetResults()

	var (
		buf []byte
		err error
	)
	if l, ok := d.backend.(Loader); ok {
		buf, err = l.Load(d, arg)
	} else {
		buf, err = d.defaultLoad(arg)
	}
	if err != nil {
		arg.resetResults()
		return nil, wrapOp("load", d.DriveName(), arg.Path, err)
	}

	d.logger.Debug("loaded file",
		"drive", d.DriveName(),
		"path", arg.Path,
		"read_size", arg.ReadSize,
		"roundup_size", arg.RoundupSize,
		"need_unload", arg.NeedUnload)
	return buf, nil
}

// Unload releases a buffer returned by Load with NeedUnload set. Passing a caller
// supplied buffer, or the same buffer twice, fails with ErrNotAllocated.
func (d *Device) Unload(buf []byte) error {
	if err := d.allocator.Free(buf); err != nil {
		return wrapOp("unload", d.DriveName(), "", err)
	}
	return nil
}

// Unload releases a buffer loaded by a device that uses the default allocator.
func Unload(buf []byte) error {
	if err := alloc.Default.Free(buf); err != nil {
		return &OpError{Op: "unload", Err: err}
	}
	return nil
}

// LoadBuffer prepares the destination for loading size bytes according to arg: it
// validates a caller supplied buffer or allocates an aligned one, and records
// RoundupSize and NeedUnload. Loaders that override the default bulk-load use it
// so buffers follow the same rules.
func (d *Device) LoadBuffer(arg *LoadArg, size int64) ([]byte, error) {
	alignment, err := arg.alignment()
	if err != nil {
		return nil, err
	}

	if arg.Buffer != nil {
		if int64(len(arg.Buffer)) < size {
			return nil, ErrInsufficientBuffer
		}
		arg.RoundupSize = int64(len(arg.Buffer))
		arg.NeedUnload = false
		return arg.Buffer, nil
	}

	n := roundUp(size, int64(alignment))
	if n == 0 {
		n = int64(alignment)
	}
	if n < size || n > math.MaxInt {
		return nil, ErrInsufficientBuffer
	}

	buf, err := d.allocator.Allocate(int(n), alignment)
	if err != nil {
		return nil, err
	}
	arg.RoundupSize = n
	arg.NeedUnload = true
	return buf, nil
}

// ReleaseLoadBuffer undoes LoadBuffer after a failed load: it frees buf when the
// device allocated it and clears the result fields.
func (d *Device) ReleaseLoadBuffer(arg *LoadArg, buf []byte) {
	if arg.NeedUnload && buf != nil {
		if err := d.allocator.Free(buf); err != nil {
			d.logger.Warn("failed to free load buffer",
				"drive", d.DriveName(),
				"path", arg.Path,
				"error", err)
		}
	}
	arg.resetResults()
}

func (d *Device) defaultLoad(arg *LoadArg) (buf []byte, err error) {
	var h Handle
	if _, err = d.Open(&h, arg.Path, OpenRead); err != nil {
		return nil, err
	}
	defer func() {
		cerr := h.Close()
		if cerr != nil && err == nil {
			d.ReleaseLoadBuffer(arg, buf)
			buf, err = nil, cerr
		}
	}()

	size, err := h.Size()
	if err != nil {
		return nil, err
	}

	buf, err = d.LoadBuffer(arg, size)
	if err != nil {
		return nil, err
	}

	n, err := readFull(&h, buf[:size])
	if err == nil && n < size {
		err = ErrShortRead
	}
	if err != nil {
		d.ReleaseLoadBuffer(arg, buf)
		return nil, err
	}

	arg.ReadSize = n
	return buf, nil
}

// readFull reads until p is full or the handle reports end of file.
func readFull(h *Handle, p []byte) (int64, error) {
	var total int64
	for total < int64(len(p)) {
		n, err := h.Read(p[total:])
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func roundUp(n, alignment int64) int64 {
	return (n + alignment - 1) &^ (alignment - 1)
}
