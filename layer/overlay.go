package layer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

var _ filedevice.Backend = (*Overlay)(nil)

// ErrNoLayers is returned when an overlay without layers is opened.
var ErrNoLayers error = fderrors.New(fderrors.CodeNotFound, "overlay has no layers")

// Overlay serves each open from the first of its layers that accepts it. Reads
// therefore see the topmost copy of a file, and writes land on the topmost layer
// that takes them (read-only layers such as archives refuse and are skipped).
type Overlay struct {
	forward

	layers []*filedevice.Device
}

// NewOverlay creates a device named drive over layers, topmost first.
func NewOverlay(drive string, layers []*filedevice.Device, opts ...filedevice.Option) *filedevice.Device {
	return filedevice.New(drive, &Overlay{layers: slices.Clone(layers)}, opts...)
}

// Layers returns the layers, topmost first.
func (o *Overlay) Layers() []*filedevice.Device {
	return slices.Clone(o.layers)
}

// Open implements filedevice.Backend. When no layer accepts the open the
// error joins every layer's failure, so it still matches fs.ErrNotExist when
// the file exists nowhere.
func (o *Overlay) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	if len(o.layers) == 0 {
		return nil, ErrNoLayers
	}

	errs := make([]error, 0, len(o.layers))
	for _, dev := range o.layers {
		inner.Reset()
		delegate, err := dev.Backend().Open(inner, name, flag)
		if err == nil {
			return served(dev, delegate), nil
		}
		errs = append(errs, fmt.Errorf("layer %s: %w", dev.DriveName(), err))
	}
	inner.Reset()
	return nil, errors.Join(errs...)
}

// SizeOf implements filedevice.Backend. It reports the size of the topmost
// copy of the file.
func (o *Overlay) SizeOf(name string) (int64, error) {
	if len(o.layers) == 0 {
		return 0, ErrNoLayers
	}

	errs := make([]error, 0, len(o.layers))
	for _, dev := range o.layers {
		size, err := dev.Backend().SizeOf(name)
		if err == nil {
			return size, nil
		}
		errs = append(errs, fmt.Errorf("layer %s: %w", dev.DriveName(), err))
	}
	return 0, errors.Join(errs...)
}
