// Package objfile implements the file handle state shared by object-store
// backends. Objects are read whole on open, edited in memory and uploaded on
// close when the handle changed them.
package objfile

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

// Store is the remote side of an object-store backend.
type Store interface {
	// Get downloads the object at key. A missing object fails with an error
	// wrapping fs.ErrNotExist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put uploads data as the object at key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Stat returns the size of the object at key.
	Stat(ctx context.Context, key string) (int64, error)
}

var _ filedevice.Backend = (*Backend)(nil)

// Backend implements filedevice.Backend over a Store.
type Backend struct {
	scheme  string
	store   Store
	prefix  string
	timeout time.Duration
}

// MaxObjectSize is the largest object a handle can grow to: the single
// PutObject limit of S3 and MinIO.
const MaxObjectSize = 5 << 30

// File is the native state of a handle opened by Backend.
type File struct {
	key   string
	flag  filedevice.OpenFlag
	data  []byte
	dirty bool
}

// New creates a backend. scheme names the backend in error messages, prefix is
// prepended to every key and timeout, when positive, bounds each remote call.
func New(scheme string, store Store, prefix string, timeout time.Duration) *Backend {
	return &Backend{
		scheme:  scheme,
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		timeout: timeout,
	}
}

// Key returns the object key for a device path.
func (b *Backend) Key(name string) string {
	name = filedevice.CleanPath(name)
	if b.prefix == "" {
		return name
	}
	return b.prefix + "/" + name
}

// Open implements filedevice.Backend. Truncating flags start from an empty
// object; the others download the existing one.
func (b *Backend) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	f := &File{key: b.Key(name), flag: flag}

	if flag.Truncates() {
		f.data = []byte{}
		f.dirty = true
	} else {
		ctx, cancel := b.context()
		defer cancel()

		data, err := b.store.Get(ctx, f.key)
		if err != nil {
			return nil, fmt.Errorf("%s: open %q: %w", b.scheme, f.key, err)
		}
		f.data = data
	}

	inner.Native = f
	return nil, nil
}

// Close implements filedevice.Backend. It uploads the object when the handle
// created or modified it.
func (b *Backend) Close(inner *filedevice.HandleInner) error {
	f := native(inner)
	inner.Native = nil
	if !f.dirty {
		return nil
	}

	ctx, cancel := b.context()
	defer cancel()

	if err := b.store.Put(ctx, f.key, f.data, ContentType(f.data)); err != nil {
		return fmt.Errorf("%s: upload %q: %w", b.scheme, f.key, err)
	}
	return nil
}

// Read implements filedevice.Backend.
func (b *Backend) Read(inner *filedevice.HandleInner, p []byte) (int, error) {
	f := native(inner)
	if !f.flag.Readable() {
		return 0, fmt.Errorf("%s: read %q: %w", b.scheme, f.key, fs.ErrPermission)
	}
	if inner.Position >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(p, f.data[inner.Position:])
	inner.Position += int64(n)
	return n, nil
}

// Write implements filedevice.Backend.
func (b *Backend) Write(inner *filedevice.HandleInner, p []byte) (int, error) {
	f := native(inner)
	if !f.flag.Writable() {
		return 0, fmt.Errorf("%s: write %q: %w", b.scheme, f.key, filedevice.ErrReadOnly)
	}

	if inner.Position > MaxObjectSize-int64(len(p)) {
		return 0, fmt.Errorf("%s: write %q at %d: %w", b.scheme, f.key, inner.Position, filedevice.ErrFileTooLarge)
	}

	end := inner.Position + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[inner.Position:], p)
	inner.Position = end
	f.dirty = true
	return len(p), nil
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
	key := b.Key(name)

	ctx, cancel := b.context()
	defer cancel()

	size, err := b.store.Stat(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%s: stat %q: %w", b.scheme, key, err)
	}
	return size, nil
}

// Size implements filedevice.Backend.
func (b *Backend) Size(inner *filedevice.HandleInner) (int64, error) {
	return int64(len(native(inner).data)), nil
}

// ContentType detects the MIME type stored with an uploaded object.
func ContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func (b *Backend) context() (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), b.timeout)
}

func native(inner *filedevice.HandleInner) *File {
	return inner.Native.(*File)
}
