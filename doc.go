// Package filedevice provides a virtual file device layer: a runtime opens, reads,
// writes and seeks files through interchangeable backing implementations behind a
// single Device type, and can bulk-load a whole file into an aligned buffer in one
// call.
//
// A Device pairs a drive name with a Backend. Backends implement the storage
// primitives (open, close, read, write, seek, position and size) against one medium;
// sibling packages provide backends for the native filesystem and in-memory blobs
// (billy), read-only memory-mapped files (mmap), packed archives (archive), object
// stores (minio, s3), committed trees of git repositories (git) and devices that
// delegate to other devices (layer).
//
// Every operation exists in two forms. The fallible form returns an error and never
// panics:
//
//	var h filedevice.Handle
//	if _, err := dev.Open(&h, "levels/intro.bin", filedevice.OpenRead); err != nil {
//	    return err
//	}
//	defer h.Release()
//
// The Must form calls the fallible one and panics with a *FatalError when it fails.
// It is meant for call sites where a failure is a programming error:
//
//	n := h.MustRead(buf)
//
// A Handle remembers two devices: the device currently serving it and the device it
// was opened against. They differ when a backend delegates the open to another
// device. Reads, writes and seeks go through the serving device; Close always goes
// through the original one.
//
// Load opens, sizes, allocates, reads and closes in one call:
//
//	arg := filedevice.LoadArg{Path: "shaders/basic.spv", Alignment: 256}
//	buf, err := dev.Load(&arg)
//	if err != nil {
//	    return err
//	}
//	defer dev.Unload(buf) // only when arg.NeedUnload is true
//	data := buf[:arg.ReadSize]
//
// Devices are registered by drive name in a Registry, which resolves paths of the
// form "drive:path".
//
// A handle must not be used from two goroutines at once. Distinct handles may be used
// concurrently when the backend allows it.
package filedevice
