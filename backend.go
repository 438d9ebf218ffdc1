package filedevice

// Backend implements the storage primitives of one medium. A Device dispatches
// every operation to its Backend after validating the handle, so implementations
// may assume the HandleInner they receive belongs to a handle that is open on them
// (Open excepted, which receives fresh state).
//
// Implementations report failures as errors and never panic. Reading fewer bytes
// than requested is not a failure: Read returns the count with a nil error (io.EOF
// is tolerated and treated as success by the Device).
type Backend interface {
	// Open binds fresh handle state to name. It returns the device that serves the
	// handle when the open is delegated to another device, or nil when the
	// backend's own device serves it. On error the state is discarded.
	Open(inner *HandleInner, name string, flag OpenFlag) (*Device, error)

	// Close releases whatever Open attached to inner.
	Close(inner *HandleInner) error

	// Read reads up to len(p) bytes at the current position and advances it.
	Read(inner *HandleInner, p []byte) (int, error)

	// Write writes p at the current position and advances it.
	Write(inner *HandleInner, p []byte) (int, error)

	// Seek moves the position. A target before the start of the file fails with
	// ErrNegativeSeek and leaves the position unchanged.
	Seek(inner *HandleInner, offset int64, origin SeekOrigin) error

	// Position returns the current position.
	Position(inner *HandleInner) (int64, error)

	// SizeOf returns the size of the file at path without opening a handle.
	SizeOf(path string) (int64, error)

	// Size returns the size of the open file.
	Size(inner *HandleInner) (int64, error)
}

// Loader is implemented by backends that replace the default bulk-load. An
// implementation must follow the same buffer rules, which Device.LoadBuffer and
// Device.ReleaseLoadBuffer apply.
type Loader interface {
	Load(dev *Device, arg *LoadArg) ([]byte, error)
}

// HandleInner is the per-open-file state a backend keeps inside a Handle. It is
// only reachable through Backend calls.
type HandleInner struct {
	// Position is the cursor, in bytes from the start of the file.
	Position int64

	// Native is the backend's own handle (an *os.File, a billy.File, an object
	// buffer, ...).
	Native any

	handle *Handle
}

// Device returns the device serving the handle this state belongs to. It is nil
// while the handle is still being opened.
func (in *HandleInner) Device() *Device {
	if in.handle == nil {
		return nil
	}
	return in.handle.device
}

// SeekTarget resolves offset against origin for a file of the given size and
// returns the absolute target position. It does not modify the state.
func (in *HandleInner) SeekTarget(offset int64, origin SeekOrigin, size int64) (int64, error) {
	var base int64
	switch origin {
	case SeekBegin:
	case SeekCurrent:
		base = in.Position
	case SeekEnd:
		base = size
	default:
		return 0, ErrInvalidOrigin
	}

	target := base + offset
	if (offset < 0 && target > base) || target < 0 {
		return 0, ErrNegativeSeek
	}
	return target, nil
}

// Reset discards the state a failed open attempt may have left behind while
// keeping the link to the owning handle. Delegating backends call it between
// attempts on different devices.
func (in *HandleInner) Reset() {
	in.Position = 0
	in.Native = nil
}
