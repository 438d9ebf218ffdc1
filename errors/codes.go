// Package errors provides the error classification used across the filedevice module.
// It extends Go's standard error handling with string error codes and context
// preservation so callers can tell apart a missing file from a misused handle
// without matching on message text.
package errors

// ErrorCode represents a specific error condition raised by a device, the registry
// or the configuration loader.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested file, object or drive does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyExists indicates a drive or resource is already registered.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeConflict indicates the resource state prevents the operation,
	// such as opening a handle that is already open.
	CodeConflict ErrorCode = "CONFLICT"

	// Permission errors.

	// CodeForbidden indicates the medium refuses the operation, such as writing
	// through a read-only device.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeOutOfRange indicates a position or size falls outside what the
	// operation allows, such as a negative seek or an undersized buffer.
	CodeOutOfRange ErrorCode = "OUT_OF_RANGE"

	// Configuration loading errors.

	// CodeCUELoadFailed indicates a CUE document could not be read or compiled.
	CodeCUELoadFailed ErrorCode = "CUE_LOAD_FAILED"

	// CodeCUEDecodeFailed indicates a CUE value could not be decoded into Go types.
	CodeCUEDecodeFailed ErrorCode = "CUE_DECODE_FAILED"

	// Infrastructure errors.

	// CodeIO indicates the backing medium failed to complete a read or write.
	CodeIO ErrorCode = "IO_ERROR"

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeNotImplemented indicates the backend does not support the operation.
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// CodeUnavailable indicates the backing service is temporarily unavailable.
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
