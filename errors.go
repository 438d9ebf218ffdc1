package filedevice

import (
	"errors"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

// Sentinel errors returned by devices, handles and the registry. They are
// *errors.PlatformError values so errors.CodeOf classifies them, and they are
// compared with errors.Is.
var (
	// ErrNotOpen is returned when operating on a closed handle.
	ErrNotOpen error = fderrors.New(fderrors.CodeConflict, "handle is not open")

	// ErrAlreadyOpen is returned when opening a handle that is already open.
	ErrAlreadyOpen error = fderrors.New(fderrors.CodeConflict, "handle is already open")

	// ErrNilHandle is returned when a nil *Handle is passed to a device.
	ErrNilHandle error = fderrors.New(fderrors.CodeInvalidInput, "nil handle")

	// ErrWrongDevice is returned when a handle is passed to a device that does not
	// serve it (or, for Close, did not open it).
	ErrWrongDevice error = fderrors.New(fderrors.CodeConflict, "handle does not belong to this device")

	// ErrNegativeSeek is returned when a seek would move before the start of the file.
	ErrNegativeSeek error = fderrors.New(fderrors.CodeOutOfRange, "seek before start of file")

	// ErrInvalidOrigin is returned for an unknown SeekOrigin.
	ErrInvalidOrigin error = fderrors.New(fderrors.CodeInvalidInput, "invalid seek origin")

	// ErrInvalidFlag is returned for an unknown OpenFlag.
	ErrInvalidFlag error = fderrors.New(fderrors.CodeInvalidInput, "invalid open flag")

	// ErrInsufficientBuffer is returned when a caller supplied load buffer is smaller
	// than the file.
	ErrInsufficientBuffer error = fderrors.New(fderrors.CodeOutOfRange, "buffer smaller than file")

	// ErrInvalidAlignment is returned when a load alignment is not a power of two.
	ErrInvalidAlignment error = fderrors.New(fderrors.CodeInvalidInput, "alignment is not a power of two")

	// ErrInvalidLoadArg is returned when Load is called without a LoadArg.
	ErrInvalidLoadArg error = fderrors.New(fderrors.CodeInvalidInput, "nil load argument")

	// ErrShortRead is returned by Load when fewer bytes than the file size could be read.
	ErrShortRead error = fderrors.New(fderrors.CodeIO, "short read")

	// ErrNotAllocated is returned when unloading a buffer the allocator never handed out.
	ErrNotAllocated = alloc.ErrNotAllocated

	// ErrFileTooLarge is returned when a write would grow a file past the size its
	// backend can hold.
	ErrFileTooLarge error = fderrors.New(fderrors.CodeOutOfRange, "file would exceed maximum size")

	// ErrReadOnly is returned when a read-only device is opened for writing.
	ErrReadOnly error = fderrors.New(fderrors.CodeForbidden, "device is read-only")

	// ErrIsDir is returned when a directory is opened or sized as a file.
	ErrIsDir error = fderrors.New(fderrors.CodeInvalidInput, "is a directory")

	// ErrDriveNotFound is returned when no device is registered under a drive name.
	ErrDriveNotFound error = fderrors.New(fderrors.CodeNotFound, "drive not found")

	// ErrDriveExists is returned when mounting a device under a taken drive name.
	ErrDriveExists error = fderrors.New(fderrors.CodeAlreadyExists, "drive already mounted")

	// ErrNoDefault is returned when a path has no drive prefix and no default
	// device is set.
	ErrNoDefault error = fderrors.New(fderrors.CodeNotFound, "no default drive")
)

// OpError records a failed device operation together with the drive and path
// it was applied to.
type OpError struct {
	// Op is the operation that failed ("open", "read", "load", ...).
	Op string

	// Drive is the drive name of the device that reported the failure.
	Drive string

	// Path is the file path involved, if known.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Drive, e.Err)
	}
	return fmt.Sprintf("%s %s:%s: %v", e.Op, e.Drive, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// wrapOp wraps err in an OpError unless the chain already carries one.
func wrapOp(op, drive, path string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Drive: drive, Path: path, Err: err}
}

// FatalError is the panic value raised by the Must variants.
type FatalError struct {
	// Op is the operation that failed.
	Op string

	// Err is the error returned by the fallible form.
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("filedevice: fatal %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FatalError) Unwrap() error {
	return e.Err
}
