package filedevice

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

// Registry maps drive names to devices and resolves "drive:path" style paths.
// It is safe for concurrent use.
type Registry struct {
	// devices holds the mounted devices indexed by drive name.
	devices map[string]*Device

	// defaultDrive names the device used for paths without a drive prefix.
	defaultDrive string

	logger *slog.Logger

	// mu protects devices and defaultDrive.
	mu sync.RWMutex
}

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger configures the registry logger. If logger is nil, logging
// is disabled.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithDefaultDrive sets the drive used for paths without a drive prefix.
func WithDefaultDrive(name string) RegistryOption {
	return func(r *Registry) {
		r.defaultDrive = name
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		devices: make(map[string]*Device),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Mount registers dev under its drive name.
func (r *Registry) Mount(dev *Device) error {
	if dev == nil {
		return fderrors.New(fderrors.CodeInvalidInput, "device cannot be nil")
	}
	name := dev.DriveName()
	if err := validateDriveName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[name]; exists {
		return fmt.Errorf("mount %q: %w", name, ErrDriveExists)
	}
	r.devices[name] = dev

	r.logger.Info("mounted device", "drive", name)
	return nil
}

// Unmount removes the device registered under name and returns it. The device is
// not destroyed.
func (r *Registry) Unmount(name string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, exists := r.devices[name]
	if !exists {
		return nil, fmt.Errorf("unmount %q: %w", name, ErrDriveNotFound)
	}
	delete(r.devices, name)
	if r.defaultDrive == name {
		r.defaultDrive = ""
	}

	r.logger.Info("unmounted device", "drive", name)
	return dev, nil
}

// Lookup returns the device registered under name.
func (r *Registry) Lookup(name string) (*Device, error) {
	r.mu.RLock()
	dev, exists := r.devices[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("lookup %q: %w", name, ErrDriveNotFound)
	}
	return dev, nil
}

// Rename moves the device registered under oldName to newName and updates its
// drive name.
func (r *Registry) Rename(oldName, newName string) error {
	if err := validateDriveName(newName); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, exists := r.devices[oldName]
	if !exists {
		return fmt.Errorf("rename %q: %w", oldName, ErrDriveNotFound)
	}
	if oldName == newName {
		return nil
	}
	if _, taken := r.devices[newName]; taken {
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, ErrDriveExists)
	}

	delete(r.devices, oldName)
	dev.SetDriveName(newName)
	r.devices[newName] = dev
	if r.defaultDrive == oldName {
		r.defaultDrive = newName
	}

	r.logger.Info("renamed device", "from", oldName, "to", newName)
	return nil
}

// Drives returns the mounted drive names in sorted order.
func (r *Registry) Drives() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetDefault makes the device registered under name the default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[name]; !exists {
		return fmt.Errorf("set default %q: %w", name, ErrDriveNotFound)
	}
	r.defaultDrive = name
	return nil
}

// Default returns the default device, or nil when none is set.
func (r *Registry) Default() *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[r.defaultDrive]
}

// Resolve splits a "drive:path" (or "drive://path") into the device mounted under
// drive and the path on it. A path without a drive prefix resolves against the
// default device.
func (r *Registry) Resolve(path string) (*Device, string, error) {
	drive, rest, ok := SplitDrive(path)
	if !ok {
		dev := r.Default()
		if dev == nil {
			return nil, "", fmt.Errorf("resolve %q: %w", path, ErrNoDefault)
		}
		return dev, path, nil
	}

	dev, err := r.Lookup(drive)
	if err != nil {
		return nil, "", err
	}
	return dev, rest, nil
}

// Open resolves path and opens it on the resolved device.
func (r *Registry) Open(h *Handle, path string, flag OpenFlag) (*Device, error) {
	dev, rest, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return dev.Open(h, rest, flag)
}

// FileSize resolves path and returns the size of the file.
func (r *Registry) FileSize(path string) (int64, error) {
	dev, rest, err := r.Resolve(path)
	if err != nil {
		return 0, err
	}
	return dev.FileSize(rest)
}

// Load resolves arg.Path and bulk-loads the file from the resolved device.
// arg.Path is left as given. Release the buffer with Unload and the same path.
func (r *Registry) Load(arg *LoadArg) ([]byte, error) {
	if arg == nil {
		return nil, &OpError{Op: "load", Err: ErrInvalidLoadArg}
	}
	dev, rest, err := r.Resolve(arg.Path)
	if err != nil {
		return nil, err
	}

	full := arg.Path
	arg.Path = rest
	defer func() { arg.Path = full }()

	return dev.Load(arg)
}

// Unload releases a buffer that Load returned for path.
func (r *Registry) Unload(path string, buf []byte) error {
	dev, _, err := r.Resolve(path)
	if err != nil {
		return err
	}
	return dev.Unload(buf)
}

// SplitDrive splits "drive:path" into its parts, dropping the slashes that follow
// the colon. ok is false when path has no drive prefix.
func SplitDrive(path string) (drive, rest string, ok bool) {
	i := strings.IndexByte(path, ':')
	if i <= 0 {
		return "", path, false
	}
	return path[:i], strings.TrimLeft(path[i+1:], "/"), true
}

func validateDriveName(name string) error {
	if name == "" {
		return fderrors.New(fderrors.CodeInvalidInput, "drive name cannot be empty")
	}
	if strings.ContainsAny(name, ":/") {
		return fderrors.New(fderrors.CodeInvalidInput, fmt.Sprintf("drive name %q cannot contain ':' or '/'", name))
	}
	return nil
}
