package filedevice

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Destroyer is implemented by backends that hold resources of their own (an
// archive image, a client) and release them when the device is destroyed.
type Destroyer interface {
	Destroy() error
}

// Allocator hands out and reclaims aligned buffers for Load and Unload.
// Implementations must be safe for concurrent use.
type Allocator interface {
	// Allocate returns a buffer of exactly size bytes whose first byte sits at a
	// multiple of alignment.
	Allocate(size, alignment int) ([]byte, error)

	// Free releases a buffer returned by Allocate. Freeing anything else, or the
	// same buffer twice, fails.
	Free(buf []byte) error
}

// Device is a named file device. It validates handles, dispatches to its Backend
// and implements bulk-load on top of the primitives.
type Device struct {
	mu        sync.RWMutex
	driveName string

	backend   Backend
	allocator Allocator
	logger    *slog.Logger
}

// New creates a device serving backend under driveName.
func New(driveName string, backend Backend, opts ...Option) *Device {
	options := defaultOptions()
	applyOptions(options, opts)

	return &Device{
		driveName: driveName,
		backend:   backend,
		allocator: options.allocator,
		logger:    options.logger,
	}
}

// DriveName returns the name the device is registered under.
func (d *Device) DriveName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.driveName
}

// SetDriveName changes the drive name. A device mounted in a Registry should be
// renamed through Registry.Rename so the registry index stays consistent.
func (d *Device) SetDriveName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.driveName = name
}

// Backend returns the backend the device dispatches to.
//
//nolint:ireturn // the backend is polymorphic by design.
func (d *Device) Backend() Backend {
	return d.backend
}

// Allocator returns the allocator used by Load and Unload.
//
//nolint:ireturn // allocators are pluggable.
func (d *Device) Allocator() Allocator {
	return d.allocator
}

// Logger returns the device logger. It is never nil.
func (d *Device) Logger() *slog.Logger {
	return d.logger
}

// Open opens name on this device and binds it to h. It returns the device that
// serves the handle, which differs from d when the backend delegates the open.
// h must be closed.
func (d *Device) Open(h *Handle, name string, flag OpenFlag) (*Device, error) {
	switch {
	case h == nil:
		return nil, wrapOp("open", d.DriveName(), name, ErrNilHandle)
	case !flag.Valid():
		return nil, wrapOp("open", d.DriveName(), name, ErrInvalidFlag)
	case h.IsOpen():
		return nil, wrapOp("open", d.DriveName(), name, ErrAlreadyOpen)
	}

	h.inner = HandleInner{handle: h}
	served, err := d.backend.Open(&h.inner, name, flag)
	if err != nil {
		h.inner = HandleInner{}
		return nil, wrapOp("open", d.DriveName(), name, err)
	}
	if served == nil {
		served = d
	}

	h.device = served
	h.original = d
	h.name = name

	d.logger.Debug("opened file",
		"drive", d.DriveName(),
		"path", name,
		"flag", flag.String(),
		"served_by", served.DriveName())
	return served, nil
}

// Close closes h. It must be called on the device h was opened against. The handle
// is closed afterwards even when the backend reports an error.
func (d *Device) Close(h *Handle) error {
	switch {
	case h == nil:
		return wrapOp("close", d.DriveName(), "", ErrNilHandle)
	case !h.IsOpen():
		return wrapOp("close", d.DriveName(), "", ErrNotOpen)
	case h.original != d:
		return wrapOp("close", d.DriveName(), h.name, ErrWrongDevice)
	}

	name := h.name
	err := d.backend.Close(&h.inner)

	h.device = nil
	h.original = nil
	h.name = ""
	h.inner = HandleInner{}

	if err != nil {
		return wrapOp("close", d.DriveName(), name, err)
	}
	d.logger.Debug("closed file", "drive", d.DriveName(), "path", name)
	return nil
}

// Read reads up to len(p) bytes from h into p and advances its position. Reaching
// the end of the file is not an error: the returned count is simply short, and zero
// at end of file.
func (d *Device) Read(h *Handle, p []byte) (int, error) {
	if err := d.checkServing(h, "read"); err != nil {
		return 0, err
	}

	n, err := d.backend.Read(&h.inner, p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, wrapOp("read", d.DriveName(), h.name, err)
	}
	return n, nil
}

// Write writes p to h at its position and advances it.
func (d *Device) Write(h *Handle, p []byte) (int, error) {
	if err := d.checkServing(h, "write"); err != nil {
		return 0, err
	}

	n, err := d.backend.Write(&h.inner, p)
	if err != nil {
		return n, wrapOp("write", d.DriveName(), h.name, err)
	}
	return n, nil
}

// Seek moves the position of h. Seeking before the start of the file fails and
// leaves the position unchanged; seeking past the end is allowed.
func (d *Device) Seek(h *Handle, offset int64, origin SeekOrigin) error {
	if err := d.checkServing(h, "seek"); err != nil {
		return err
	}
	if !origin.Valid() {
		return wrapOp("seek", d.DriveName(), h.name, ErrInvalidOrigin)
	}

	pos := h.inner.Position
	if err := d.backend.Seek(&h.inner, offset, origin); err != nil {
		h.inner.Position = pos
		return wrapOp("seek", d.DriveName(), h.name, err)
	}
	return nil
}

// Position returns the current position of h.
func (d *Device) Position(h *Handle) (int64, error) {
	if err := d.checkServing(h, "position"); err != nil {
		return 0, err
	}

	pos, err := d.backend.Position(&h.inner)
	if err != nil {
		return 0, wrapOp("position", d.DriveName(), h.name, err)
	}
	return pos, nil
}

// FileSize returns the size of the file at path.
func (d *Device) FileSize(path string) (int64, error) {
	size, err := d.backend.SizeOf(path)
	if err != nil {
		return 0, wrapOp("size", d.DriveName(), path, err)
	}
	return size, nil
}

// HandleSize returns the size of the file open on h.
func (d *Device) HandleSize(h *Handle) (int64, error) {
	if err := d.checkServing(h, "size"); err != nil {
		return 0, err
	}

	size, err := d.backend.Size(&h.inner)
	if err != nil {
		return 0, wrapOp("size", d.DriveName(), h.name, err)
	}
	return size, nil
}

// WithFile opens name, passes the handle to fn and closes it on every exit path.
// It returns fn's error, or the close error when fn succeeded.
func (d *Device) WithFile(name string, flag OpenFlag, fn func(h *Handle) error) (err error) {
	var h Handle
	if _, err = d.Open(&h, name, flag); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			h.Release()
			panic(r)
		}
		if err != nil {
			h.Release()
			return
		}
		err = h.Close()
	}()

	return fn(&h)
}

// Destroy tears the device down, calling the backend's Destroy when it
// implements Destroyer. Handles still open on the device must not be used
// afterwards.
func (d *Device) Destroy() error {
	ds, ok := d.backend.(Destroyer)
	if !ok {
		return nil
	}
	if err := ds.Destroy(); err != nil {
		return wrapOp("destroy", d.DriveName(), "", err)
	}
	return nil
}

func (d *Device) checkServing(h *Handle, op string) error {
	switch {
	case h == nil:
		return wrapOp(op, d.DriveName(), "", ErrNilHandle)
	case !h.IsOpen():
		return wrapOp(op, d.DriveName(), "", ErrNotOpen)
	case h.device != d:
		return wrapOp(op, d.DriveName(), h.name, ErrWrongDevice)
	}
	return nil
}
