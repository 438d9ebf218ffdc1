// Package mmap serves read-only file devices from a native directory through
// memory-mapped files. Files that cannot be mapped (empty files, platforms
// without mmap) are read through os.File instead.
//
// The backend overrides the default bulk-load: Load copies a file straight out
// of its mapping into the aligned buffer without going through a handle.
package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.dw1.io/mmapfile"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

var (
	_ filedevice.Backend = (*Backend)(nil)
	_ filedevice.Loader  = (*Backend)(nil)
)

// Backend implements a read-only filedevice.Backend over a native directory.
type Backend struct {
	root string
}

// New creates a backend serving files below root.
func New(root string) *Backend {
	return &Backend{root: root}
}

// NewDevice creates a device named drive serving files below root.
func NewDevice(drive, root string, opts ...filedevice.Option) *filedevice.Device {
	return filedevice.New(drive, New(root), opts...)
}

// Root returns the directory the backend serves.
func (b *Backend) Root() string {
	return b.root
}

// Open implements filedevice.Backend. Writable flags fail with
// filedevice.ErrReadOnly.
func (b *Backend) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	if flag.Writable() {
		return nil, fmt.Errorf("mmap: open %q: %w", name, filedevice.ErrReadOnly)
	}

	f, err := b.open(name)
	if err != nil {
		return nil, err
	}
	inner.Native = f
	return nil, nil
}

// Close implements filedevice.Backend.
func (b *Backend) Close(inner *filedevice.HandleInner) error {
	return native(inner).close()
}

// Read implements filedevice.Backend.
func (b *Backend) Read(inner *filedevice.HandleInner, p []byte) (int, error) {
	f := native(inner)
	if inner.Position >= f.size {
		return 0, nil
	}

	n, err := f.readAt(p, inner.Position)
	inner.Position += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("mmap: read %q: %w", f.name, err)
	}
	return n, nil
}

// Write implements filedevice.Backend. Handles are never writable.
func (b *Backend) Write(inner *filedevice.HandleInner, _ []byte) (int, error) {
	return 0, fmt.Errorf("mmap: write %q: %w", native(inner).name, filedevice.ErrReadOnly)
}

// Seek implements filedevice.Backend.
func (b *Backend) Seek(inner *filedevice.HandleInner, offset int64, origin filedevice.SeekOrigin) error {
	target, err := inner.SeekTarget(offset, origin, native(inner).size)
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
	info, err := b.stat(name)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Size implements filedevice.Backend.
func (b *Backend) Size(inner *filedevice.HandleInner) (int64, error) {
	return native(inner).size, nil
}

// Load implements filedevice.Loader.
func (b *Backend) Load(dev *filedevice.Device, arg *filedevice.LoadArg) (buf []byte, err error) {
	f, err := b.open(arg.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		cerr := f.close()
		if cerr != nil && err == nil {
			dev.ReleaseLoadBuffer(arg, buf)
			buf, err = nil, cerr
		}
	}()

	buf, err = dev.LoadBuffer(arg, f.size)
	if err != nil {
		return nil, err
	}

	var n int
	if data := f.bytes(); data != nil {
		n = copy(buf[:f.size], data)
	} else {
		n, err = io.ReadFull(io.NewSectionReader(f.file, 0, f.size), buf[:f.size])
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil
		}
	}
	if err == nil && int64(n) < f.size {
		err = filedevice.ErrShortRead
	}
	if err != nil {
		dev.ReleaseLoadBuffer(arg, buf)
		return nil, err
	}

	arg.ReadSize = int64(n)
	return buf, nil
}

func (b *Backend) path(name string) string {
	return filepath.Join(b.root, filepath.FromSlash(filedevice.CleanPath(name)))
}

func (b *Backend) stat(name string) (os.FileInfo, error) {
	info, err := os.Stat(b.path(name))
	if err != nil {
		return nil, fmt.Errorf("mmap: stat %q: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("mmap: stat %q: %w", name, filedevice.ErrIsDir)
	}
	return info, nil
}

func (b *Backend) open(name string) (*mappedFile, error) {
	info, err := b.stat(name)
	if err != nil {
		return nil, err
	}

	p := b.path(name)
	if info.Size() > 0 {
		if mm, err := mmapfile.Open(p); err == nil {
			return &mappedFile{name: name, size: int64(mm.Len()), mm: mm, file: mm}, nil
		}
	}

	osf, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %q: %w", name, err)
	}
	return &mappedFile{name: name, size: info.Size(), os: osf, file: osf}, nil
}

func native(inner *filedevice.HandleInner) *mappedFile {
	return inner.Native.(*mappedFile)
}
