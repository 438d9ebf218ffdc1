package filedevice

import (
	"io"
	"log/slog"
)

// noCopy marks a struct that must not be copied after first use. go vet's
// copylocks check reports copies of structs containing it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle is one open file. The zero value is a closed handle ready to be passed to
// Device.Open. A Handle must not be copied.
type Handle struct {
	_ noCopy

	device   *Device
	original *Device
	name     string
	inner    HandleInner
}

// Device returns the device serving the handle, or nil when it is closed.
func (h *Handle) Device() *Device {
	return h.device
}

// OriginalDevice returns the device the handle was opened against, or nil when it
// is closed.
func (h *Handle) OriginalDevice() *Device {
	return h.original
}

// IsOpen reports whether the handle is open.
func (h *Handle) IsOpen() bool {
	return h.device != nil
}

// Name returns the path the handle was opened with.
func (h *Handle) Name() string {
	return h.name
}

// Close closes the handle through the device it was opened against.
func (h *Handle) Close() error {
	if h.original == nil {
		return &OpError{Op: "close", Err: ErrNotOpen}
	}
	return h.original.Close(h)
}

// Read reads up to len(p) bytes and advances the position. A short or zero count
// with a nil error means the end of the file was reached.
func (h *Handle) Read(p []byte) (int, error) {
	if h.device == nil {
		return 0, &OpError{Op: "read", Err: ErrNotOpen}
	}
	return h.device.Read(h, p)
}

// Write writes p and advances the position.
func (h *Handle) Write(p []byte) (int, error) {
	if h.device == nil {
		return 0, &OpError{Op: "write", Err: ErrNotOpen}
	}
	return h.device.Write(h, p)
}

// Seek moves the position relative to origin.
func (h *Handle) Seek(offset int64, origin SeekOrigin) error {
	if h.device == nil {
		return &OpError{Op: "seek", Err: ErrNotOpen}
	}
	return h.device.Seek(h, offset, origin)
}

// Position returns the current position.
func (h *Handle) Position() (int64, error) {
	if h.device == nil {
		return 0, &OpError{Op: "position", Err: ErrNotOpen}
	}
	return h.device.Position(h)
}

// Size returns the size of the open file.
func (h *Handle) Size() (int64, error) {
	if h.device == nil {
		return 0, &OpError{Op: "size", Err: ErrNotOpen}
	}
	return h.device.HandleSize(h)
}

// Release closes the handle if it is open and swallows any failure, logging it
// through the original device. It is the deferred counterpart of Open:
//
//	defer h.Release()
func (h *Handle) Release() {
	dev := h.original
	if dev == nil {
		return
	}

	name := h.name
	if err := dev.Close(h); err != nil {
		dev.logger.Warn("best-effort close failed",
			"drive", dev.DriveName(),
			"path", name,
			"error", err)
	}
}

// Stream returns an io.ReadWriteSeeker over the handle. Unlike Read, the stream
// reports io.EOF once the end of the file is reached, so it can be used with
// io.Copy and friends.
//
//nolint:ireturn // the adapter exists to satisfy standard library interfaces.
func (h *Handle) Stream() io.ReadWriteSeeker {
	return &stream{h: h}
}

func (h *Handle) logger() *slog.Logger {
	switch {
	case h.device != nil:
		return h.device.logger
	case h.original != nil:
		return h.original.logger
	default:
		return slog.Default()
	}
}

type stream struct {
	h *Handle
}

func (s *stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.h.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *stream) Write(p []byte) (int, error) {
	n, err := s.h.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

func (s *stream) Seek(offset int64, whence int) (int64, error) {
	origin, err := OriginFromWhence(whence)
	if err != nil {
		return 0, err
	}
	if err := s.h.Seek(offset, origin); err != nil {
		return 0, err
	}
	return s.h.Position()
}
