package layer

import (
	"fmt"
	"path"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

var _ filedevice.Backend = (*Redirect)(nil)

// Redirect serves a drive from a directory of another device. The name
// "textures/a.png" on a redirect with prefix "assets" opens
// "assets/textures/a.png" on the target.
type Redirect struct {
	forward

	target *filedevice.Device
	prefix string
}

// NewRedirect creates a device named drive that redirects every path to
// prefix on target.
func NewRedirect(drive string, target *filedevice.Device, prefix string, opts ...filedevice.Option) *filedevice.Device {
	return filedevice.New(drive, &Redirect{
		target: target,
		prefix: filedevice.CleanPath(prefix),
	}, opts...)
}

// Target returns the device paths are redirected to.
func (r *Redirect) Target() *filedevice.Device {
	return r.target
}

// Path returns the target path for name. Names cannot climb out of the prefix.
func (r *Redirect) Path(name string) string {
	name = filedevice.CleanPath(name)
	if r.prefix == "" {
		return name
	}
	return path.Join(r.prefix, name)
}

// Open implements filedevice.Backend. It reports the target, or the device the
// target delegated to, as the serving device.
func (r *Redirect) Open(inner *filedevice.HandleInner, name string, flag filedevice.OpenFlag) (*filedevice.Device, error) {
	p := r.Path(name)
	delegate, err := r.target.Backend().Open(inner, p, flag)
	if err != nil {
		return nil, fmt.Errorf("redirect to %s:%s: %w", r.target.DriveName(), p, err)
	}
	return served(r.target, delegate), nil
}

// SizeOf implements filedevice.Backend.
func (r *Redirect) SizeOf(name string) (int64, error) {
	p := r.Path(name)
	size, err := r.target.Backend().SizeOf(p)
	if err != nil {
		return 0, fmt.Errorf("redirect to %s:%s: %w", r.target.DriveName(), p, err)
	}
	return size, nil
}
