// Package billy serves file devices from go-billy filesystems: the native
// filesystem rooted at a directory, or an in-memory blob store.
package billy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

var _ filedevice.Backend = (*Backend)(nil)

const (
	// MaxFileSize bounds how far a write may grow a file on any filesystem.
	MaxFileSize = 1 << 40

	// MaxMemoryFileSize bounds file growth on the in-memory filesystem.
	MaxMemoryFileSize = 1 << 32
)

// Backend implements filedevice.Backend over a go-billy filesystem.
type Backend struct {
	fs      billy.Filesystem
	maxSize int64
}

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithMaxFileSize sets the size past which writes fail with
// filedevice.ErrFileTooLarge.
func WithMaxFileSize(n int64) Option {
	return func(b *Backend) {
		b.maxSize = n
	}
}

// openFile is the native state of a handle opened by Backend.
type openFile struct {
	file billy.File
	name string
}

// statter is implemented by billy files that can stat themselves.
type statter interface {
	Stat() (os.FileInfo, error)
}

// New creates a backend over fsys.
func New(fsys billy.Filesystem, opts ...Option) *Backend {
	b := &Backend{fs: fsys, maxSize: MaxFileSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewOS creates a backend over the native directory root.
func NewOS(root string, opts ...Option) *Backend {
	return New(osfs.New(root), opts...)
}

// NewMemory creates a backend over an empty in-memory filesystem.
// Writes past MaxMemoryFileSize fail unless opts raise the bound.
func NewMemory(opts ...Option) *Backend {
	return New(memfs.New(), append([]Option{WithMaxFileSize(MaxMemoryFileSize)}, opts...)...)
}

// NewDevice creates a device named drive serving fsys.
func NewDevice(drive string, fsys billy.Filesystem, opts ...filedevice.Option) *filedevice.Device {
	return filedevice.New(drive, New(fsys), opts...)
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // returning interface here is intentional to expose the adapter target.
func (b *Backend) Raw() billy.Filesystem {
	return b.fs
}

// Open implements filedevice.Backend.
func (b *Backend) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	name = filedevice.CleanPath(name)

	if info, err := b.fs.Stat(name); err == nil && info.IsDir() {
		return nil, fmt.Errorf("billy: open %q: %w", name, filedevice.ErrIsDir)
	}

	f, err := b.fs.OpenFile(name, flag.OSFlag(), 0o644)
	if err != nil {
		return nil, fmt.Errorf("billy: open %q: %w", name, err)
	}

	inner.Native = &openFile{file: f, name: name}
	return nil, nil
}

// Close implements filedevice.Backend.
func (b *Backend) Close(inner *filedevice.HandleInner) error {
	f := native(inner)
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("billy: close %q: %w", f.name, err)
	}
	return nil
}

// Read implements filedevice.Backend.
func (b *Backend) Read(inner *filedevice.HandleInner, p []byte) (int, error) {
	f := native(inner)
	n, err := f.file.Read(p)
	inner.Position += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("billy: read %q: %w", f.name, err)
	}
	return n, nil
}

// Write implements filedevice.Backend.
func (b *Backend) Write(inner *filedevice.HandleInner, p []byte) (int, error) {
	f := native(inner)
	if inner.Position > b.maxSize-int64(len(p)) {
		return 0, fmt.Errorf("billy: write %q at %d: %w", f.name, inner.Position, filedevice.ErrFileTooLarge)
	}
	n, err := f.file.Write(p)
	inner.Position += int64(n)
	if err != nil {
		return n, fmt.Errorf("billy: write %q: %w", f.name, err)
	}
	return n, nil
}

// Seek implements filedevice.Backend.
func (b *Backend) Seek(inner *filedevice.HandleInner, offset int64, origin filedevice.SeekOrigin) error {
	f := native(inner)

	var size int64
	if origin == filedevice.SeekEnd {
		s, err := b.Size(inner)
		if err != nil {
			return err
		}
		size = s
	}
	target, err := inner.SeekTarget(offset, origin, size)
	if err != nil {
		return err
	}

	pos, err := f.file.Seek(target, io.SeekStart)
	if err != nil {
		return fmt.Errorf("billy: seek %q off=%d: %w", f.name, target, err)
	}
	inner.Position = pos
	return nil
}

// Position implements filedevice.Backend.
func (b *Backend) Position(inner *filedevice.HandleInner) (int64, error) {
	return inner.Position, nil
}

// SizeOf implements filedevice.Backend.
func (b *Backend) SizeOf(name string) (int64, error) {
	name = filedevice.CleanPath(name)
	info, err := b.fs.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("billy: stat %q: %w", name, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("billy: stat %q: %w", name, filedevice.ErrIsDir)
	}
	return info.Size(), nil
}

// Size implements filedevice.Backend.
func (b *Backend) Size(inner *filedevice.HandleInner) (int64, error) {
	f := native(inner)
	if s, ok := f.file.(statter); ok {
		info, err := s.Stat()
		if err == nil {
			return info.Size(), nil
		}
	}

	info, err := b.fs.Stat(f.name)
	if err != nil {
		return 0, fmt.Errorf("billy: stat %q: %w", f.name, err)
	}
	return info.Size(), nil
}

func native(inner *filedevice.HandleInner) *openFile {
	return inner.Native.(*openFile)
}
