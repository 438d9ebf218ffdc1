package archive

import (
	"fmt"
	"io/fs"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

var (
	_ filedevice.Backend   = (*Backend)(nil)
	_ filedevice.Loader    = (*Backend)(nil)
	_ filedevice.Destroyer = (*Backend)(nil)
)

// Backend implements a read-only filedevice.Backend over an Archive.
type Backend struct {
	arc *Archive

	// release frees the image when the backend owns it.
	release     func() error
	releaseOnce sync.Once
}

// openEntry is the native state of a handle opened by Backend.
type openEntry struct {
	name string
	data []byte
}

// New creates a backend serving arc.
func New(arc *Archive) *Backend {
	return &Backend{arc: arc}
}

// NewDevice creates a device named drive serving arc.
func NewDevice(drive string, arc *Archive, opts ...filedevice.Option) *filedevice.Device {
	return filedevice.New(drive, New(arc), opts...)
}

// Mount bulk-loads the image at path from src and returns a device named drive
// serving it. The image is loaded at the archive's data alignment and is
// unloaded from src when the returned device is destroyed.
func Mount(drive string, src *filedevice.Device, path string, opts ...filedevice.Option) (*filedevice.Device, error) {
	alignment, err := peekAlignment(src, path)
	if err != nil {
		return nil, err
	}

	arg := &filedevice.LoadArg{Path: path, Alignment: alignment}
	image, err := src.Load(arg)
	if err != nil {
		return nil, fmt.Errorf("archive: mount %q: %w", path, err)
	}
	unload := func() error {
		if !arg.NeedUnload {
			return nil
		}
		return src.Unload(image)
	}

	arc, err := Parse(image[:arg.ReadSize])
	if err != nil {
		if uerr := unload(); uerr != nil {
			src.Logger().Warn("failed to unload archive image", "drive", src.DriveName(), "path", path, "error", uerr)
		}
		return nil, fmt.Errorf("archive: mount %q: %w", path, err)
	}

	b := New(arc)
	b.release = unload
	dev := filedevice.New(drive, b, opts...)

	dev.Logger().Debug("mounted archive",
		"drive", drive,
		"source", src.DriveName(),
		"path", path,
		"entries", arc.Len())
	return dev, nil
}

// peekAlignment reads the image header through a handle and returns the data
// alignment the image should be loaded at.
func peekAlignment(src *filedevice.Device, path string) (int, error) {
	header := make([]byte, headerSize)
	var n int
	err := src.WithFile(path, filedevice.OpenRead, func(h *filedevice.Handle) error {
		for n < len(header) {
			m, err := h.Read(header[n:])
			if err != nil {
				return err
			}
			if m == 0 {
				break
			}
			n += m
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("archive: mount %q: %w", path, err)
	}
	if n < headerSize || string(header[:4]) != Magic {
		return 0, fmt.Errorf("archive: mount %q: %w", path, formatError("missing header"))
	}
	alignment := readHeader(header).alignment
	if err := checkAlignment(alignment); err != nil {
		return 0, fmt.Errorf("archive: mount %q: %w", path, err)
	}
	return max(int(alignment), filedevice.MinAlignment), nil
}

// Archive returns the archive the backend serves.
func (b *Backend) Archive() *Archive {
	return b.arc
}

// Destroy implements filedevice.Destroyer. It unloads a mounted image once.
func (b *Backend) Destroy() error {
	var err error
	b.releaseOnce.Do(func() {
		if b.release != nil {
			err = b.release()
		}
	})
	return err
}

// Open implements filedevice.Backend. Writable flags fail with
// filedevice.ErrReadOnly.
func (b *Backend) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	if flag.Writable() {
		return nil, fmt.Errorf("archive: open %q: %w", name, filedevice.ErrReadOnly)
	}
	data, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	inner.Native = &openEntry{name: name, data: data}
	return nil, nil
}

// Close implements filedevice.Backend.
func (b *Backend) Close(inner *filedevice.HandleInner) error {
	inner.Native = nil
	return nil
}

// Read implements filedevice.Backend.
func (b *Backend) Read(inner *filedevice.HandleInner, p []byte) (int, error) {
	e := native(inner)
	if inner.Position >= int64(len(e.data)) {
		return 0, nil
	}
	n := copy(p, e.data[inner.Position:])
	inner.Position += int64(n)
	return n, nil
}

// Write implements filedevice.Backend. Handles are never writable.
func (b *Backend) Write(inner *filedevice.HandleInner, _ []byte) (int, error) {
	return 0, fmt.Errorf("archive: write %q: %w", native(inner).name, filedevice.ErrReadOnly)
}

// Seek implements filedevice.Backend.
func (b *Backend) Seek(inner *filedevice.HandleInner, offset int64, origin filedevice.SeekOrigin) error {
	target, err := inner.SeekTarget(offset, origin, int64(len(native(inner).data)))
	if err != nil {
		return err
	}
	inner.Position = target
	return nil
}

// Position implements filedevice.Backend.
func (b *Backend) Position(inner *filedevice.HandleInner) (int64, error) {
	return inner.Position, nil
}

// SizeOf implements filedevice.Backend.
func (b *Backend) SizeOf(name string) (int64, error) {
	data, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Size implements filedevice.Backend.
func (b *Backend) Size(inner *filedevice.HandleInner) (int64, error) {
	return int64(len(native(inner).data)), nil
}

// Load implements filedevice.Loader by copying the entry straight out of the
// image.
func (b *Backend) Load(dev *filedevice.Device, arg *filedevice.LoadArg) ([]byte, error) {
	data, err := b.lookup(arg.Path)
	if err != nil {
		return nil, err
	}
	buf, err := dev.LoadBuffer(arg, int64(len(data)))
	if err != nil {
		return nil, err
	}
	arg.ReadSize = int64(copy(buf, data))
	return buf, nil
}

func (b *Backend) lookup(name string) ([]byte, error) {
	data, ok := b.arc.Lookup(name)
	if ok {
		return data, nil
	}
	if b.arc.IsDir(name) {
		return nil, fmt.Errorf("archive: lookup %q: %w", name, filedevice.ErrIsDir)
	}
	return nil, fmt.Errorf("archive: lookup %q: %w", name, fs.ErrNotExist)
}

func native(inner *filedevice.HandleInner) *openEntry {
	return inner.Native.(*openEntry)
}
