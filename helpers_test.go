package filedevice_test

import (
	"errors"
	"io"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
)

// memBackend is a minimal in-memory backend that counts primitive calls.
type memBackend struct {
	mu    sync.Mutex
	files map[string][]byte

	opens  int
	closes int
	calls  int

	// closeErr is returned by every Close.
	closeErr error
	// sizeBias is added to the size reported for open handles.
	sizeBias int64
	// eofAtEnd makes reads at end of file report io.EOF.
	eofAtEnd bool
}

type memFile struct {
	name string
	flag filedevice.OpenFlag
}

func newMemBackend(files map[string]string) *memBackend {
	b := &memBackend{files: make(map[string][]byte)}
	for name, data := range files {
		b.files[name] = []byte(data)
	}
	return b
}

func (b *memBackend) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if flag.Truncates() {
		b.files[name] = []byte{}
	} else if _, ok := b.files[name]; !ok {
		return nil, fs.ErrNotExist
	}
	b.opens++
	inner.Native = &memFile{name: name, flag: flag}
	return nil, nil
}

func (b *memBackend) Close(inner *filedevice.HandleInner) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	inner.Native = nil
	return b.closeErr
}

func (b *memBackend) Read(inner *filedevice.HandleInner, p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	f := inner.Native.(*memFile)
	if !f.flag.Readable() {
		return 0, filedevice.ErrReadOnly
	}
	data := b.files[f.name]
	if inner.Position >= int64(len(data)) {
		if b.eofAtEnd {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, data[inner.Position:])
	inner.Position += int64(n)
	return n, nil
}

func (b *memBackend) Write(inner *filedevice.HandleInner, p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	f := inner.Native.(*memFile)
	if !f.flag.Writable() {
		return 0, errors.New("handle not writable")
	}
	data := b.files[f.name]
	end := inner.Position + int64(len(p))
	if end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[inner.Position:], p)
	b.files[f.name] = data
	inner.Position = end
	return len(p), nil
}

func (b *memBackend) Seek(inner *filedevice.HandleInner, offset int64, origin filedevice.SeekOrigin) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	f := inner.Native.(*memFile)
	target, err := inner.SeekTarget(offset, origin, int64(len(b.files[f.name])))
	if err != nil {
		return err
	}
	inner.Position = target
	return nil
}

func (b *memBackend) Position(inner *filedevice.HandleInner) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return inner.Position, nil
}

func (b *memBackend) SizeOf(path string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[path]
	if !ok {
		return 0, fs.ErrNotExist
	}
	return int64(len(data)), nil
}

func (b *memBackend) Size(inner *filedevice.HandleInner) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	f := inner.Native.(*memFile)
	return int64(len(b.files[f.name])) + b.sizeBias, nil
}

func (b *memBackend) openCount() (opens, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens, b.closes
}

func (b *memBackend) primitiveCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *memBackend) contents(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.files[name])
}

// forwardBackend delegates every open to another device.
type forwardBackend struct {
	target *filedevice.Device
}

func (b *forwardBackend) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	if _, err := b.target.Backend().Open(inner, name, flag); err != nil {
		return nil, err
	}
	return b.target, nil
}

func (b *forwardBackend) Close(inner *filedevice.HandleInner) error {
	return inner.Device().Backend().Close(inner)
}

func (b *forwardBackend) Read(*filedevice.HandleInner, []byte) (int, error) {
	return 0, errors.New("forward: read on delegating device")
}

func (b *forwardBackend) Write(*filedevice.HandleInner, []byte) (int, error) {
	return 0, errors.New("forward: write on delegating device")
}

func (b *forwardBackend) Seek(*filedevice.HandleInner, int64, filedevice.SeekOrigin) error {
	return errors.New("forward: seek on delegating device")
}

func (b *forwardBackend) Position(*filedevice.HandleInner) (int64, error) {
	return 0, errors.New("forward: position on delegating device")
}

func (b *forwardBackend) SizeOf(path string) (int64, error) {
	return b.target.FileSize(path)
}

func (b *forwardBackend) Size(*filedevice.HandleInner) (int64, error) {
	return 0, errors.New("forward: size on delegating device")
}

// newTestDevice returns a device over a fresh memBackend with its own allocator.
func newTestDevice(t *testing.T, drive string, files map[string]string) (*filedevice.Device, *memBackend, *alloc.Aligned) {
	t.Helper()
	b := newMemBackend(files)
	a := alloc.NewAligned()
	return filedevice.New(drive, b, filedevice.WithAllocator(a)), b, a
}

// catchFatal runs fn and returns the *FatalError it panicked with.
func catchFatal(t *testing.T, fn func()) (fe *filedevice.FatalError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		fe, ok = r.(*filedevice.FatalError)
		require.True(t, ok, "panic value is %T, want *FatalError", r)
	}()
	fn()
	return nil
}
