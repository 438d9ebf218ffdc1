// Package devicetest provides a conformance test suite for validating file
// device backends against the filedevice.Device contracts.
//
// Backend packages run the suite with a factory that builds a fresh device
// holding the given files:
//
//	func TestConformance(t *testing.T) {
//	    devicetest.TestSuite(t, func(t *testing.T, files map[string][]byte) *filedevice.Device {
//	        return mybackend.NewDevice("test", files)
//	    })
//	}
//
// Read-only backends set Options.ReadOnly; the write tests are then replaced by
// a check that writable opens are refused.
package devicetest

import (
	"slices"
	"strings"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

// Factory returns a fresh device that holds exactly files. Paths use forward
// slashes and no leading slash.
type Factory func(t *testing.T, files map[string][]byte) *filedevice.Device

// Options tunes the suite for backends with documented differences.
type Options struct {
	// ReadOnly marks devices that refuse writable opens.
	ReadOnly bool

	// Skip lists test names to skip, e.g. "Load" or "Write/TruncateOnOpen".
	Skip []string
}

// Fixture is the file set every group of the suite starts from.
func Fixture() map[string][]byte {
	nested := make([]byte, 300)
	for i := range nested {
		nested[i] = byte(i)
	}
	return map[string][]byte{
		helloPath:  []byte(helloContent),
		nestedPath: nested,
		emptyPath:  {},
	}
}

const (
	helloPath    = "hello.txt"
	helloContent = "hello, file device"
	nestedPath   = "dir/nested.bin"
	emptyPath    = "empty"
	missingPath  = "does/not/exist"
)

// TestSuite runs every conformance test against devices built by newDevice.
func TestSuite(t *testing.T, newDevice Factory) {
	TestSuiteWithOptions(t, newDevice, Options{})
}

// TestSuiteWithOptions runs the conformance tests with options.
func TestSuiteWithOptions(t *testing.T, newDevice Factory, opts Options) {
	shouldSkip := func(name string) bool {
		return slices.Contains(opts.Skip, name)
	}
	run := func(name string, fn func(t *testing.T, dev *filedevice.Device)) {
		t.Run(name, func(t *testing.T) {
			if shouldSkip(name) || shouldSkip(strings.SplitN(name, "/", 2)[0]) {
				t.Skip("Skipped by backend configuration")
				return
			}
			fn(t, newDevice(t, Fixture()))
		})
	}

	run("Handle/OpenClose", testOpenClose)
	run("Handle/OpenMissing", testOpenMissing)
	run("Handle/AlreadyOpen", testAlreadyOpen)
	run("Handle/ClosedOperations", testClosedOperations)

	run("Read/Full", testReadFull)
	run("Read/ShortAtEnd", testReadShortAtEnd)
	run("Read/Seek", testSeek)
	run("Read/NegativeSeek", testNegativeSeek)
	run("Read/PastEnd", testReadPastEnd)
	run("Read/Sizes", testSizes)

	if opts.ReadOnly {
		run("Write/Refused", testWriteRefused)
	} else {
		run("Write/RoundTrip", testWriteRoundTrip)
		run("Write/TruncateOnOpen", testTruncateOnOpen)
		run("Write/UpdateInPlace", testUpdateInPlace)
		run("Write/VisibleAfterClose", testVisibleAfterClose)
		run("Write/FarPastEnd", testWriteFarPastEnd)
	}

	run("Load/Aligned", testLoadAligned)
	run("Load/CallerBuffer", testLoadCallerBuffer)
	run("Load/InsufficientBuffer", testLoadInsufficientBuffer)
	run("Load/Unload", testLoadUnload)
	run("Load/Missing", testLoadMissing)
}

func mustOpen(t *testing.T, dev *filedevice.Device, h *filedevice.Handle, name string, flag filedevice.OpenFlag) {
	t.Helper()
	if _, err := dev.Open(h, name, flag); err != nil {
		t.Fatalf("Open(%q, %s): got error %v, want nil", name, flag, err)
	}
}

func mustClose(t *testing.T, h *filedevice.Handle) {
	t.Helper()
	if err := h.Close(); err != nil {
		t.Errorf("Close(): got error %v, want nil", err)
	}
}

// readAll reads from the current position until a zero count.
func readAll(t *testing.T, h *filedevice.Handle) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := h.Read(buf)
		if err != nil {
			t.Fatalf("Read(): got error %v, want nil", err)
		}
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}
