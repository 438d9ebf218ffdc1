package filedevice

import "log/slog"

// fail logs err and panics with a *FatalError. It backs every Must variant.
func fail(logger *slog.Logger, drive, op string, err error) {
	logger.Error("fatal file device failure", "drive", drive, "op", op, "error", err)
	panic(&FatalError{Op: op, Err: err})
}

// MustOpen is like Open but panics on failure.
func (d *Device) MustOpen(h *Handle, name string, flag OpenFlag) *Device {
	dev, err := d.Open(h, name, flag)
	if err != nil {
		fail(d.logger, d.DriveName(), "open", err)
	}
	return dev
}

// MustClose is like Close but panics on failure.
func (d *Device) MustClose(h *Handle) {
	if err := d.Close(h); err != nil {
		fail(d.logger, d.DriveName(), "close", err)
	}
}

// MustRead is like Read but panics on failure.
func (d *Device) MustRead(h *Handle, p []byte) int {
	n, err := d.Read(h, p)
	if err != nil {
		fail(d.logger, d.DriveName(), "read", err)
	}
	return n
}

// MustWrite is like Write but panics on failure.
func (d *Device) MustWrite(h *Handle, p []byte) int {
	n, err := d.Write(h, p)
	if err != nil {
		fail(d.logger, d.DriveName(), "write", err)
	}
	return n
}

// MustSeek is like Seek but panics on failure.
func (d *Device) MustSeek(h *Handle, offset int64, origin SeekOrigin) {
	if err := d.Seek(h, offset, origin); err != nil {
		fail(d.logger, d.DriveName(), "seek", err)
	}
}

// MustPosition is like Position but panics on failure.
func (d *Device) MustPosition(h *Handle) int64 {
	pos, err := d.Position(h)
	if err != nil {
		fail(d.logger, d.DriveName(), "position", err)
	}
	return pos
}

// MustFileSize is like FileSize but panics on failure.
func (d *Device) MustFileSize(path string) int64 {
	size, err := d.FileSize(path)
	if err != nil {
		fail(d.logger, d.DriveName(), "size", err)
	}
	return size
}

// MustHandleSize is like HandleSize but panics on failure.
func (d *Device) MustHandleSize(h *Handle) int64 {
	size, err := d.HandleSize(h)
	if err != nil {
		fail(d.logger, d.DriveName(), "size", err)
	}
	return size
}

// MustLoad is like Load but panics on failure.
func (d *Device) MustLoad(arg *LoadArg) []byte {
	buf, err := d.Load(arg)
	if err != nil {
		fail(d.logger, d.DriveName(), "load", err)
	}
	return buf
}

// MustUnload is like Unload but panics on failure.
func (d *Device) MustUnload(buf []byte) {
	if err := d.Unload(buf); err != nil {
		fail(d.logger, d.DriveName(), "unload", err)
	}
}

// MustClose is like Close but panics on failure.
func (h *Handle) MustClose() {
	// Close resets the handle, so capture the device details first.
	logger, drive := h.logger(), h.driveName()
	if err := h.Close(); err != nil {
		fail(logger, drive, "close", err)
	}
}

// MustRead is like Read but panics on failure.
func (h *Handle) MustRead(p []byte) int {
	n, err := h.Read(p)
	if err != nil {
		fail(h.logger(), h.driveName(), "read", err)
	}
	return n
}

// MustWrite is like Write but panics on failure.
func (h *Handle) MustWrite(p []byte) int {
	n, err := h.Write(p)
	if err != nil {
		fail(h.logger(), h.driveName(), "write", err)
	}
	return n
}

// MustSeek is like Seek but panics on failure.
func (h *Handle) MustSeek(offset int64, origin SeekOrigin) {
	if err := h.Seek(offset, origin); err != nil {
		fail(h.logger(), h.driveName(), "seek", err)
	}
}

// MustPosition is like Position but panics on failure.
func (h *Handle) MustPosition() int64 {
	pos, err := h.Position()
	if err != nil {
		fail(h.logger(), h.driveName(), "position", err)
	}
	return pos
}

// MustSize is like Size but panics on failure.
func (h *Handle) MustSize() int64 {
	size, err := h.Size()
	if err != nil {
		fail(h.logger(), h.driveName(), "size", err)
	}
	return size
}

func (h *Handle) driveName() string {
	if h.device == nil {
		return ""
	}
	return h.device.DriveName()
}
