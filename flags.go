package filedevice

import (
	"fmt"
	"io"
	"os"
)

// OpenFlag selects the access mode of a handle.
type OpenFlag int

const (
	// OpenRead opens an existing file for reading ("r").
	OpenRead OpenFlag = iota
	// OpenWrite creates or truncates a file for writing ("w").
	OpenWrite
	// OpenReadWrite opens an existing file for reading and writing without
	// truncating it ("r+").
	OpenReadWrite
	// OpenCreate creates or truncates a file for reading and writing ("w+").
	OpenCreate
)

// ParseOpenFlag parses the fopen-style mode strings "r", "w", "r+" and "w+".
func ParseOpenFlag(s string) (OpenFlag, error) {
	switch s {
	case "r":
		return OpenRead, nil
	case "w":
		return OpenWrite, nil
	case "r+":
		return OpenReadWrite, nil
	case "w+":
		return OpenCreate, nil
	default:
		return 0, fmt.Errorf("parse open flag %q: %w", s, ErrInvalidFlag)
	}
}

// String returns the fopen-style mode string.
func (f OpenFlag) String() string {
	switch f {
	case OpenRead:
		return "r"
	case OpenWrite:
		return "w"
	case OpenReadWrite:
		return "r+"
	case OpenCreate:
		return "w+"
	default:
		return fmt.Sprintf("OpenFlag(%d)", int(f))
	}
}

// Valid reports whether f is one of the four defined flags.
func (f OpenFlag) Valid() bool {
	return f >= OpenRead && f <= OpenCreate
}

// Readable reports whether a handle opened with f may be read.
func (f OpenFlag) Readable() bool {
	return f == OpenRead || f == OpenReadWrite || f == OpenCreate
}

// Writable reports whether a handle opened with f may be written.
func (f OpenFlag) Writable() bool {
	return f == OpenWrite || f == OpenReadWrite || f == OpenCreate
}

// Truncates reports whether opening with f creates the file and discards its
// previous contents.
func (f OpenFlag) Truncates() bool {
	return f == OpenWrite || f == OpenCreate
}

// OSFlag returns the os.OpenFile flag equivalent of f.
func (f OpenFlag) OSFlag() int {
	switch f {
	case OpenWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case OpenReadWrite:
		return os.O_RDWR
	case OpenCreate:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC
	default:
		return os.O_RDONLY
	}
}

// SeekOrigin is the reference point of a seek offset.
type SeekOrigin int

const (
	// SeekBegin seeks relative to the start of the file.
	SeekBegin SeekOrigin = iota
	// SeekCurrent seeks relative to the current position.
	SeekCurrent
	// SeekEnd seeks relative to the end of the file.
	SeekEnd
)

// String returns the origin name.
func (o SeekOrigin) String() string {
	switch o {
	case SeekBegin:
		return "begin"
	case SeekCurrent:
		return "current"
	case SeekEnd:
		return "end"
	default:
		return fmt.Sprintf("SeekOrigin(%d)", int(o))
	}
}

// Valid reports whether o is one of the three defined origins.
func (o SeekOrigin) Valid() bool {
	return o >= SeekBegin && o <= SeekEnd
}

// Whence returns the io.Seek* constant equivalent of o.
func (o SeekOrigin) Whence() int {
	switch o {
	case SeekCurrent:
		return io.SeekCurrent
	case SeekEnd:
		return io.SeekEnd
	default:
		return io.SeekStart
	}
}

// OriginFromWhence converts an io.Seek* constant into a SeekOrigin.
func OriginFromWhence(whence int) (SeekOrigin, error) {
	switch whence {
	case io.SeekStart:
		return SeekBegin, nil
	case io.SeekCurrent:
		return SeekCurrent, nil
	case io.SeekEnd:
		return SeekEnd, nil
	default:
		return 0, fmt.Errorf("whence %d: %w", whence, ErrInvalidOrigin)
	}
}
