package devicetest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

// testOpenClose verifies the handle state across open and close.
func testOpenClose(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	if h.IsOpen() {
		t.Fatalf("IsOpen(): zero handle reports open")
	}

	served, err := dev.Open(&h, helloPath, filedevice.OpenRead)
	if err != nil {
		t.Fatalf("Open(%q): got error %v, want nil", helloPath, err)
	}
	if !h.IsOpen() {
		t.Errorf("IsOpen(): got false after Open, want true")
	}
	if h.Device() != served {
		t.Errorf("Device(): got %v, want the device returned by Open", h.Device())
	}
	if h.OriginalDevice() != dev {
		t.Errorf("OriginalDevice(): got %v, want %v", h.OriginalDevice(), dev)
	}
	if pos, err := h.Position(); err != nil || pos != 0 {
		t.Errorf("Position(): got (%d, %v), want (0, nil)", pos, err)
	}

	mustClose(t, &h)
	if h.IsOpen() || h.Device() != nil {
		t.Errorf("after Close(): handle still open")
	}
}

// testOpenMissing verifies that a missing file fails to open and leaves the
// handle closed.
func testOpenMissing(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	if _, err := dev.Open(&h, missingPath, filedevice.OpenRead); err == nil {
		h.Release()
		t.Fatalf("Open(%q): got nil error, want failure", missingPath)
	}
	if h.IsOpen() {
		t.Errorf("IsOpen(): got true after failed Open, want false")
	}
	if _, err := dev.FileSize(missingPath); err == nil {
		t.Errorf("FileSize(%q): got nil error, want failure", missingPath)
	}
}

// testAlreadyOpen verifies that an open handle cannot be reopened.
func testAlreadyOpen(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenRead)
	defer h.Release()

	_, err := dev.Open(&h, nestedPath, filedevice.OpenRead)
	if !errors.Is(err, filedevice.ErrAlreadyOpen) {
		t.Errorf("Open() on open handle: got %v, want ErrAlreadyOpen", err)
	}
	if got := readAll(t, &h); string(got) != helloContent {
		t.Errorf("Read() after refused reopen: got %q, want %q", got, helloContent)
	}
}

// testClosedOperations verifies that every operation on a closed handle fails
// with ErrNotOpen.
func testClosedOperations(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenRead)
	mustClose(t, &h)

	check := func(op string, err error) {
		t.Helper()
		if !errors.Is(err, filedevice.ErrNotOpen) {
			t.Errorf("%s on closed handle: got %v, want ErrNotOpen", op, err)
		}
	}

	_, err := h.Read(make([]byte, 4))
	check("Read()", err)
	_, err = h.Write([]byte("x"))
	check("Write()", err)
	check("Seek()", h.Seek(0, filedevice.SeekBegin))
	_, err = h.Position()
	check("Position()", err)
	_, err = h.Size()
	check("Size()", err)
	check("Close()", h.Close())
	check("Device.Close()", dev.Close(&h))
}

// testReadFull verifies that a file reads back byte for byte.
func testReadFull(t *testing.T, dev *filedevice.Device) {
	for name, want := range Fixture() {
		var h filedevice.Handle
		mustOpen(t, dev, &h, name, filedevice.OpenRead)
		got := readAll(t, &h)
		mustClose(t, &h)

		if !bytes.Equal(got, want) {
			t.Errorf("Read(%q): got %d bytes %q, want %d bytes", name, len(got), truncate(got), len(want))
		}
	}
}

// testReadShortAtEnd verifies that reading past the end is a short read, not a
// failure.
func testReadShortAtEnd(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenRead)
	defer h.Release()

	buf := make([]byte, len(helloContent)+100)
	total := 0
	for total < len(helloContent) {
		n, err := h.Read(buf[total:])
		if err != nil {
			t.Fatalf("Read(): got error %v, want nil", err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	if total != len(helloContent) {
		t.Errorf("Read(): got %d bytes, want %d", total, len(helloContent))
	}

	n, err := h.Read(buf)
	if err != nil || n != 0 {
		t.Errorf("Read() at end: got (%d, %v), want (0, nil)", n, err)
	}
}

// testSeek verifies seeking from every origin.
func testSeek(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenRead)
	defer h.Release()

	steps := []struct {
		offset int64
		origin filedevice.SeekOrigin
		want   int64
	}{
		{7, filedevice.SeekBegin, 7},
		{2, filedevice.SeekCurrent, 9},
		{-3, filedevice.SeekCurrent, 6},
		{-6, filedevice.SeekEnd, int64(len(helloContent)) - 6},
		{0, filedevice.SeekEnd, int64(len(helloContent))},
		{0, filedevice.SeekBegin, 0},
	}
	for _, s := range steps {
		if err := h.Seek(s.offset, s.origin); err != nil {
			t.Fatalf("Seek(%d, %s): got error %v, want nil", s.offset, s.origin, err)
		}
		pos, err := h.Position()
		if err != nil || pos != s.want {
			t.Errorf("Position() after Seek(%d, %s): got (%d, %v), want (%d, nil)", s.offset, s.origin, pos, err, s.want)
		}
	}

	if err := h.Seek(7, filedevice.SeekBegin); err != nil {
		t.Fatalf("Seek(7, begin): got error %v, want nil", err)
	}
	buf := make([]byte, 4)
	n, err := h.Read(buf)
	if err != nil || string(buf[:n]) != helloContent[7:11] {
		t.Errorf("Read() after Seek: got (%q, %v), want (%q, nil)", buf[:n], err, helloContent[7:11])
	}
}

// testNegativeSeek verifies that seeking before the start fails and leaves the
// position unchanged.
func testNegativeSeek(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenRead)
	defer h.Release()

	if err := h.Seek(5, filedevice.SeekBegin); err != nil {
		t.Fatalf("Seek(5, begin): got error %v, want nil", err)
	}

	attempts := []struct {
		offset int64
		origin filedevice.SeekOrigin
	}{
		{-1, filedevice.SeekBegin},
		{-6, filedevice.SeekCurrent},
		{-int64(len(helloContent)) - 1, filedevice.SeekEnd},
	}
	for _, a := range attempts {
		err := h.Seek(a.offset, a.origin)
		if !errors.Is(err, filedevice.ErrNegativeSeek) {
			t.Errorf("Seek(%d, %s): got %v, want ErrNegativeSeek", a.offset, a.origin, err)
		}
		if pos, err := h.Position(); err != nil || pos != 5 {
			t.Errorf("Position() after failed Seek: got (%d, %v), want (5, nil)", pos, err)
		}
	}
}

// testReadPastEnd verifies that a position past the end is allowed and reads
// nothing.
func testReadPastEnd(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenRead)
	defer h.Release()

	if err := h.Seek(10, filedevice.SeekEnd); err != nil {
		t.Fatalf("Seek(10, end): got error %v, want nil", err)
	}
	n, err := h.Read(make([]byte, 8))
	if err != nil || n != 0 {
		t.Errorf("Read() past end: got (%d, %v), want (0, nil)", n, err)
	}
}

// testSizes verifies FileSize and HandleSize against the fixture.
func testSizes(t *testing.T, dev *filedevice.Device) {
	for name, data := range Fixture() {
		size, err := dev.FileSize(name)
		if err != nil || size != int64(len(data)) {
			t.Errorf("FileSize(%q): got (%d, %v), want (%d, nil)", name, size, err, len(data))
		}

		var h filedevice.Handle
		mustOpen(t, dev, &h, name, filedevice.OpenRead)
		size, err = h.Size()
		if err != nil || size != int64(len(data)) {
			t.Errorf("Size(%q): got (%d, %v), want (%d, nil)", name, size, err, len(data))
		}
		mustClose(t, &h)
	}
}

func truncate(b []byte) []byte {
	if len(b) > 32 {
		return b[:32]
	}
	return b
}
