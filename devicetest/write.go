package devicetest

import (
	"bytes"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

// testWriteRoundTrip writes a new file and reads it back through the same and a
// fresh handle.
func testWriteRoundTrip(t *testing.T, dev *filedevice.Device) {
	const name = "written/roundtrip.txt"
	data := []byte("bytes written through a handle")

	var h filedevice.Handle
	mustOpen(t, dev, &h, name, filedevice.OpenCreate)

	n, err := h.Write(data)
	if err != nil || n != len(data) {
		h.Release()
		t.Fatalf("Write(): got (%d, %v), want (%d, nil)", n, err, len(data))
	}
	if pos, err := h.Position(); err != nil || pos != int64(len(data)) {
		t.Errorf("Position() after Write: got (%d, %v), want (%d, nil)", pos, err, len(data))
	}
	if err := h.Seek(0, filedevice.SeekBegin); err != nil {
		h.Release()
		t.Fatalf("Seek(0, begin): got error %v, want nil", err)
	}
	if got := readAll(t, &h); !bytes.Equal(got, data) {
		t.Errorf("Read() on w+ handle: got %q, want %q", got, data)
	}
	mustClose(t, &h)

	mustOpen(t, dev, &h, name, filedevice.OpenRead)
	got := readAll(t, &h)
	mustClose(t, &h)
	if !bytes.Equal(got, data) {
		t.Errorf("Read() after reopen: got %q, want %q", got, data)
	}
}

// testWriteFarPastEnd verifies that a write at an offset no backend can hold
// fails with an error and leaves the file as it was.
func testWriteFarPastEnd(t *testing.T, dev *filedevice.Device) {
	const name = "written/far.bin"

	var h filedevice.Handle
	mustOpen(t, dev, &h, name, filedevice.OpenCreate)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Write() far past end panicked: %v", r)
		}
	}()

	if err := h.Seek(1<<62, filedevice.SeekBegin); err == nil {
		if n, err := h.Write([]byte{1}); err == nil {
			t.Errorf("Write() at offset 1<<62: got (%d, nil), want an error", n)
		}
	}
	mustClose(t, &h)

	size, err := dev.FileSize(name)
	if err != nil || size != 0 {
		t.Errorf("FileSize(%q): got (%d, %v), want (0, nil)", name, size, err)
	}
}

// testTruncateOnOpen verifies that "w" discards previous contents.
func testTruncateOnOpen(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenWrite)
	if _, err := h.Write([]byte("new")); err != nil {
		h.Release()
		t.Fatalf("Write(): got error %v, want nil", err)
	}
	mustClose(t, &h)

	size, err := dev.FileSize(helloPath)
	if err != nil || size != 3 {
		t.Errorf("FileSize(%q) after truncate: got (%d, %v), want (3, nil)", helloPath, size, err)
	}
}

// testUpdateInPlace verifies that "r+" keeps the contents and overwrites at the
// position.
func testUpdateInPlace(t *testing.T, dev *filedevice.Device) {
	var h filedevice.Handle
	mustOpen(t, dev, &h, helloPath, filedevice.OpenReadWrite)
	if err := h.Seek(0, filedevice.SeekBegin); err != nil {
		h.Release()
		t.Fatalf("Seek(): got error %v, want nil", err)
	}
	if _, err := h.Write([]byte("HELLO")); err != nil {
		h.Release()
		t.Fatalf("Write(): got error %v, want nil", err)
	}
	mustClose(t, &h)

	mustOpen(t, dev, &h, helloPath, filedevice.OpenRead)
	got := readAll(t, &h)
	mustClose(t, &h)

	want := "HELLO" + helloContent[5:]
	if string(got) != want {
		t.Errorf("Read() after r+ update: got %q, want %q", got, want)
	}

	var missing filedevice.Handle
	if _, err := dev.Open(&missing, missingPath, filedevice.OpenReadWrite); err == nil {
		missing.Release()
		t.Errorf("Open(%q, r+): got nil error, want failure", missingPath)
	}
}

// testVisibleAfterClose verifies that FileSize reports written data once the
// handle is closed.
func testVisibleAfterClose(t *testing.T, dev *filedevice.Device) {
	const name = "visible.bin"
	data := bytes.Repeat([]byte{0x5a}, 1000)

	err := dev.WithFile(name, filedevice.OpenWrite, func(h *filedevice.Handle) error {
		_, err := h.Stream().Write(data)
		return err
	})
	if err != nil {
		t.Fatalf("WithFile(%q): got error %v, want nil", name, err)
	}

	size, err := dev.FileSize(name)
	if err != nil || size != int64(len(data)) {
		t.Errorf("FileSize(%q): got (%d, %v), want (%d, nil)", name, size, err, len(data))
	}
}

// testWriteRefused verifies that read-only devices refuse writable opens.
func testWriteRefused(t *testing.T, dev *filedevice.Device) {
	for _, flag := range []filedevice.OpenFlag{filedevice.OpenWrite, filedevice.OpenReadWrite, filedevice.OpenCreate} {
		var h filedevice.Handle
		if _, err := dev.Open(&h, helloPath, flag); err == nil {
			h.Release()
			t.Errorf("Open(%q, %s): got nil error on read-only device, want failure", helloPath, flag)
		}
		if h.IsOpen() {
			t.Errorf("IsOpen(): got true after refused Open(%s)", flag)
		}
	}

	size, err := dev.FileSize(helloPath)
	if err != nil || size != int64(len(helloContent)) {
		t.Errorf("FileSize(%q) after refused writes: got (%d, %v), want (%d, nil)", helloPath, size, err, len(helloContent))
	}
}
