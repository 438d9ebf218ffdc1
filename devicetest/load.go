package devicetest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
)

// liveCounter is implemented by allocators that track outstanding buffers.
type liveCounter interface {
	Live() int
}

func liveBuffers(dev *filedevice.Device) (int, bool) {
	lc, ok := dev.Allocator().(liveCounter)
	if !ok {
		return 0, false
	}
	return lc.Live(), true
}

// testLoadAligned verifies allocated load buffers for several alignments.
func testLoadAligned(t *testing.T, dev *filedevice.Device) {
	want := Fixture()[nestedPath]

	for _, alignment := range []int{0, 16, 64, 512, 4096} {
		arg := &filedevice.LoadArg{Path: nestedPath, Alignment: alignment}
		buf, err := dev.Load(arg)
		if err != nil {
			t.Fatalf("Load(alignment=%d): got error %v, want nil", alignment, err)
		}

		effective := max(alignment, filedevice.MinAlignment)
		wantRoundup := int64(alloc.RoundUp(len(want), effective))
		if !arg.NeedUnload {
			t.Errorf("Load(alignment=%d): NeedUnload = false, want true", alignment)
		}
		if arg.ReadSize != int64(len(want)) {
			t.Errorf("Load(alignment=%d): ReadSize = %d, want %d", alignment, arg.ReadSize, len(want))
		}
		if arg.RoundupSize != wantRoundup || int64(len(buf)) != wantRoundup {
			t.Errorf("Load(alignment=%d): RoundupSize = %d, len = %d, want %d", alignment, arg.RoundupSize, len(buf), wantRoundup)
		}
		if !alloc.IsAligned(buf, effective) {
			t.Errorf("Load(alignment=%d): buffer not aligned to %d", alignment, effective)
		}
		if !bytes.Equal(buf[:arg.ReadSize], want) {
			t.Errorf("Load(alignment=%d): contents differ", alignment)
		}

		if err := dev.Unload(buf); err != nil {
			t.Errorf("Unload(): got error %v, want nil", err)
		}
	}

	arg := &filedevice.LoadArg{Path: emptyPath}
	buf, err := dev.Load(arg)
	if err != nil {
		t.Fatalf("Load(%q): got error %v, want nil", emptyPath, err)
	}
	if arg.ReadSize != 0 || arg.RoundupSize != filedevice.MinAlignment {
		t.Errorf("Load(%q): got ReadSize %d RoundupSize %d, want 0 and %d", emptyPath, arg.ReadSize, arg.RoundupSize, filedevice.MinAlignment)
	}
	if err := dev.Unload(buf); err != nil {
		t.Errorf("Unload(): got error %v, want nil", err)
	}

	if _, err := dev.Load(&filedevice.LoadArg{Path: helloPath, Alignment: 48}); !errors.Is(err, filedevice.ErrInvalidAlignment) {
		t.Errorf("Load(alignment=48): got %v, want ErrInvalidAlignment", err)
	}
}

// testLoadCallerBuffer verifies loading into a caller supplied buffer.
func testLoadCallerBuffer(t *testing.T, dev *filedevice.Device) {
	caller := make([]byte, 1024)
	arg := &filedevice.LoadArg{Path: helloPath, Buffer: caller}

	buf, err := dev.Load(arg)
	if err != nil {
		t.Fatalf("Load(): got error %v, want nil", err)
	}
	if &buf[0] != &caller[0] {
		t.Errorf("Load(): returned buffer is not the caller buffer")
	}
	if arg.NeedUnload {
		t.Errorf("Load(): NeedUnload = true for caller buffer, want false")
	}
	if arg.RoundupSize != int64(len(caller)) {
		t.Errorf("Load(): RoundupSize = %d, want %d", arg.RoundupSize, len(caller))
	}
	if string(caller[:arg.ReadSize]) != helloContent {
		t.Errorf("Load(): got %q, want %q", caller[:arg.ReadSize], helloContent)
	}
	if err := dev.Unload(caller); !errors.Is(err, filedevice.ErrNotAllocated) {
		t.Errorf("Unload(caller buffer): got %v, want ErrNotAllocated", err)
	}
}

// testLoadInsufficientBuffer verifies that a small caller buffer is rejected and
// left untouched.
func testLoadInsufficientBuffer(t *testing.T, dev *filedevice.Device) {
	caller := bytes.Repeat([]byte{0xee}, 8)
	arg := &filedevice.LoadArg{Path: helloPath, Buffer: caller}

	buf, err := dev.Load(arg)
	if !errors.Is(err, filedevice.ErrInsufficientBuffer) {
		t.Errorf("Load(): got %v, want ErrInsufficientBuffer", err)
	}
	if buf != nil {
		t.Errorf("Load(): got non-nil buffer on failure")
	}
	if !bytes.Equal(caller, bytes.Repeat([]byte{0xee}, 8)) {
		t.Errorf("Load(): caller buffer modified on failure: %x", caller)
	}
	if arg.ReadSize != 0 || arg.RoundupSize != 0 || arg.NeedUnload {
		t.Errorf("Load(): result fields set on failure: %+v", arg)
	}
}

// testLoadUnload verifies that an allocated buffer unloads exactly once.
func testLoadUnload(t *testing.T, dev *filedevice.Device) {
	before, tracked := liveBuffers(dev)

	buf, err := dev.Load(&filedevice.LoadArg{Path: helloPath})
	if err != nil {
		t.Fatalf("Load(): got error %v, want nil", err)
	}
	if err := dev.Unload(buf); err != nil {
		t.Errorf("Unload(): got error %v, want nil", err)
	}
	if err := dev.Unload(buf); !errors.Is(err, filedevice.ErrNotAllocated) {
		t.Errorf("second Unload(): got %v, want ErrNotAllocated", err)
	}

	if tracked {
		if after, _ := liveBuffers(dev); after != before {
			t.Errorf("live buffers: got %d after load and unload, want %d", after, before)
		}
	}
}

// testLoadMissing verifies that a failed load allocates nothing.
func testLoadMissing(t *testing.T, dev *filedevice.Device) {
	before, tracked := liveBuffers(dev)

	arg := &filedevice.LoadArg{Path: missingPath}
	if _, err := dev.Load(arg); err == nil {
		t.Fatalf("Load(%q): got nil error, want failure", missingPath)
	}
	if arg.NeedUnload || arg.RoundupSize != 0 {
		t.Errorf("Load(%q): result fields set on failure: %+v", missingPath, arg)
	}
	if tracked {
		if after, _ := liveBuffers(dev); after != before {
			t.Errorf("live buffers: got %d after failed load, want %d", after, before)
		}
	}
}
