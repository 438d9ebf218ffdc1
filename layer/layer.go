// Package layer provides backends that serve no files of their own and instead
// delegate opens to other devices: a redirect maps a drive onto a directory of
// another device, and an overlay stacks several devices and serves each open
// from the first one that can.
//
// Handles opened through a layer device are served by the device that
// accepted the open. They are still closed through the layer device, which
// forwards the close to the serving device's backend.
package layer

import (
	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

// forward implements the handle primitives of delegating backends. The device
// only calls them for handles it serves itself, which a delegating backend
// never does, so each one routes to the backend of the serving device.
type forward struct{}

func (forward) Close(inner *filedevice.HandleInner) error {
	return serving(inner).Close(inner)
}

func (forward) Read(inner *filedevice.HandleInner, p []byte) (int, error) {
	return serving(inner).Read(inner, p)
}

func (forward) Write(inner *filedevice.HandleInner, p []byte) (int, error) {
	return serving(inner).Write(inner, p)
}

func (forward) Seek(inner *filedevice.HandleInner, offset int64, origin filedevice.SeekOrigin) error {
	return serving(inner).Seek(inner, offset, origin)
}

func (forward) Position(inner *filedevice.HandleInner) (int64, error) {
	return serving(inner).Position(inner)
}

func (forward) Size(inner *filedevice.HandleInner) (int64, error) {
	return serving(inner).Size(inner)
}

//nolint:ireturn // backends are polymorphic.
func serving(inner *filedevice.HandleInner) filedevice.Backend {
	return inner.Device().Backend()
}

// served returns the device that accepted an open on dev's backend.
func served(dev, delegate *filedevice.Device) *filedevice.Device {
	if delegate != nil {
		return delegate
	}
	return dev
}
