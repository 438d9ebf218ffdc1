package filedevice_test

import (
	"bytes"
	"io/fs"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
)

func TestMust_Success(t *testing.T) {
	dev, _, a := newTestDevice(t, "mem", map[string]string{"f": "hello"})

	var h filedevice.Handle
	served := dev.MustOpen(&h, "f", filedevice.OpenReadWrite)
	assert.Same(t, dev, served)

	assert.Equal(t, int64(5), h.MustSize())
	assert.Equal(t, int64(5), dev.MustHandleSize(&h))
	assert.Equal(t, int64(5), dev.MustFileSize("f"))

	h.MustSeek(0, filedevice.SeekEnd)
	assert.Equal(t, 3, h.MustWrite([]byte("!!!")))
	assert.Equal(t, int64(8), h.MustPosition())

	dev.MustSeek(&h, 0, filedevice.SeekBegin)
	buf := make([]byte, 8)
	assert.Equal(t, 8, dev.MustRead(&h, buf))
	assert.Equal(t, "hello!!!", string(buf))
	assert.Equal(t, int64(8), dev.MustPosition(&h))
	h.MustClose()

	loaded := dev.MustLoad(&filedevice.LoadArg{Path: "f"})
	dev.MustUnload(loaded)
	assert.Equal(t, 0, a.Live())
}

func TestMust_Panics(t *testing.T) {
	dev, _, _ := newTestDevice(t, "mem", map[string]string{"f": "hello"})

	fe := catchFatal(t, func() {
		var h filedevice.Handle
		dev.MustOpen(&h, "missing", filedevice.OpenRead)
	})
	assert.Equal(t, "open", fe.Op)
	assert.ErrorIs(t, fe, fs.ErrNotExist)

	fe = catchFatal(t, func() {
		var h filedevice.Handle
		h.MustRead(make([]byte, 1))
	})
	assert.Equal(t, "read", fe.Op)
	assert.ErrorIs(t, fe, filedevice.ErrNotOpen)

	fe = catchFatal(t, func() {
		var h filedevice.Handle
		h.MustClose()
	})
	assert.Equal(t, "close", fe.Op)

	fe = catchFatal(t, func() {
		var h filedevice.Handle
		dev.MustOpen(&h, "f", filedevice.OpenRead)
		defer h.Release()
		h.MustSeek(-1, filedevice.SeekBegin)
	})
	assert.ErrorIs(t, fe, filedevice.ErrNegativeSeek)

	fe = catchFatal(t, func() {
		dev.MustLoad(&filedevice.LoadArg{Path: "f", Buffer: make([]byte, 1)})
	})
	assert.Equal(t, "load", fe.Op)
	assert.ErrorIs(t, fe, filedevice.ErrInsufficientBuffer)

	fe = catchFatal(t, func() {
		dev.MustUnload(make([]byte, 64))
	})
	assert.ErrorIs(t, fe, filedevice.ErrNotAllocated)

	fe = catchFatal(t, func() {
		dev.MustFileSize("missing")
	})
	assert.Equal(t, "size", fe.Op)
}

func TestMust_LogsFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dev := filedevice.New("logged", newMemBackend(nil), filedevice.WithLogger(logger))

	catchFatal(t, func() {
		dev.MustFileSize("missing")
	})

	out := logs.String()
	require.Contains(t, out, "fatal file device failure")
	assert.Contains(t, out, "drive=logged")
	assert.Contains(t, out, "op=size")
	assert.Contains(t, out, "level=ERROR")
}
