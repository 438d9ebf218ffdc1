package mmap

import (
	"fmt"
	"io"
	"os"

	"go.dw1.io/mmapfile"
)

// mappedFile is either a memory-mapped file or its os.File fallback.
type mappedFile struct {
	name string
	size int64

	mm *mmapfile.MmapFile
	os *os.File

	// file is whichever of mm and os is set.
	file io.ReaderAt
}

func (f *mappedFile) readAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

// bytes exposes the mapped region, or nil for the os.File fallback.
func (f *mappedFile) bytes() []byte {
	if f.mm != nil {
		return f.mm.Bytes()
	}
	return nil
}

func (f *mappedFile) close() error {
	var err error
	if f.mm != nil {
		err = f.mm.Close()
	} else {
		err = f.os.Close()
	}
	if err != nil {
		return fmt.Errorf("mmap: close %q: %w", f.name, err)
	}
	return nil
}
