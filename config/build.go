package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/archive"
	fdbilly "github.com/input-output-hk/catalyst-forge-libs/filedevice/billy"
	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
	fdgit "github.com/input-output-hk/catalyst-forge-libs/filedevice/git"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/layer"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/minio"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/mmap"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/s3"
)

// Build mounts every drive of t, in declaration order, into a new registry and
// sets its default drive. Devices share one allocator and logger. When a mount
// fails the drives already mounted are torn down.
func Build(ctx context.Context, t *Table, logger *slog.Logger) (*filedevice.Registry, error) {
	if t == nil {
		return nil, fderrors.New(fderrors.CodeInvalidInput, "mount table is nil")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var allocator filedevice.Allocator
	switch t.Allocator {
	case AllocatorAligned:
		allocator = alloc.NewAligned()
	default:
		allocator = alloc.NewPool()
	}
	opts := []filedevice.Option{
		filedevice.WithLogger(logger),
		filedevice.WithAllocator(allocator),
	}

	reg := filedevice.NewRegistry(filedevice.WithRegistryLogger(logger))
	for i := range t.Mounts {
		m := &t.Mounts[i]
		dev, err := mount(ctx, reg, m, opts)
		if err == nil {
			err = mountDevice(reg, dev, logger)
		}
		if err != nil {
			teardown(reg, logger)
			return nil, fderrors.WrapWithContext(err, fderrors.CodeOf(err),
				"failed to mount drive", map[string]interface{}{
					"drive": m.Drive,
					"kind":  m.Kind,
				})
		}
	}

	if err := reg.SetDefault(t.DefaultDrive()); err != nil {
		teardown(reg, logger)
		return nil, err
	}
	return reg, nil
}

// mountDevice mounts dev into reg, destroying dev when the registry refuses it.
func mountDevice(reg *filedevice.Registry, dev *filedevice.Device, logger *slog.Logger) error {
	err := reg.Mount(dev)
	if err == nil {
		return nil
	}
	if derr := dev.Destroy(); derr != nil {
		logger.Warn("failed to destroy unmounted device", "drive", dev.DriveName(), "error", derr)
	}
	return err
}

// teardown tears down a partially built registry, logging failures.
func teardown(reg *filedevice.Registry, logger *slog.Logger) {
	if err := Teardown(reg); err != nil {
		logger.Warn("failed to tear down partial registry", "error", err)
	}
}

// Teardown unmounts and destroys every device of reg, returning the joined
// failures.
func Teardown(reg *filedevice.Registry) error {
	var errs []error
	for _, name := range reg.Drives() {
		dev, err := reg.Unmount(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := dev.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func mount(ctx context.Context, reg *filedevice.Registry, m *Mount, opts []filedevice.Option) (*filedevice.Device, error) {
	switch m.Kind {
	case KindNative:
		return fdbilly.NewDevice(m.Drive, osfs.New(m.Root), opts...), nil

	case KindMemory:
		return filedevice.New(m.Drive, fdbilly.NewMemory(), opts...), nil

	case KindMmap:
		return mmap.NewDevice(m.Drive, m.Root, opts...), nil

	case KindArchive:
		src, path, err := reg.Resolve(m.Source)
		if err != nil {
			return nil, err
		}
		return archive.Mount(m.Drive, src, path, opts...)

	case KindRedirect:
		target, err := reg.Lookup(m.Target)
		if err != nil {
			return nil, err
		}
		return layer.NewRedirect(m.Drive, target, m.Prefix, opts...), nil

	case KindOverlay:
		layers := make([]*filedevice.Device, 0, len(m.Layers))
		for _, name := range m.Layers {
			dev, err := reg.Lookup(name)
			if err != nil {
				return nil, err
			}
			layers = append(layers, dev)
		}
		return layer.NewOverlay(m.Drive, layers, opts...), nil

	case KindMinio:
		timeout, err := m.timeout()
		if err != nil {
			return nil, err
		}
		client, err := minio.NewClient(m.Endpoint, m.AccessKey, m.SecretKey, m.Secure)
		if err != nil {
			return nil, err
		}
		mopts := []minio.Option{minio.WithPrefix(m.Prefix)}
		if timeout > 0 {
			mopts = append(mopts, minio.WithTimeout(timeout))
		}
		return filedevice.New(m.Drive, minio.New(client, m.Bucket, mopts...), opts...), nil

	case KindS3:
		timeout, err := m.timeout()
		if err != nil {
			return nil, err
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if m.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(m.Region))
		}
		sopts := []s3.Option{s3.WithPrefix(m.Prefix)}
		if timeout > 0 {
			sopts = append(sopts, s3.WithTimeout(timeout))
		}
		backend, err := s3.NewFromConfig(ctx, m.Bucket, loadOpts, sopts...)
		if err != nil {
			return nil, err
		}
		return filedevice.New(m.Drive, backend, opts...), nil

	case KindGit:
		var gopts []fdgit.Option
		if m.Revision != "" {
			gopts = append(gopts, fdgit.WithRevision(m.Revision))
		}
		backend, err := fdgit.PlainOpen(m.Root, gopts...)
		if err != nil {
			return nil, err
		}
		return fdgit.NewDevice(m.Drive, backend, opts...), nil

	default:
		return nil, fderrors.New(fderrors.CodeInvalidConfig, fmt.Sprintf("unknown kind %q", m.Kind))
	}
}
