package filedevice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

func TestRegistry_Mount(t *testing.T) {
	r := filedevice.NewRegistry()
	dev, _, _ := newTestDevice(t, "content", nil)

	require.NoError(t, r.Mount(dev))

	got, err := r.Lookup("content")
	require.NoError(t, err)
	assert.Same(t, dev, got)

	dup, _, _ := newTestDevice(t, "content", nil)
	assert.ErrorIs(t, r.Mount(dup), filedevice.ErrDriveExists)

	err = r.Mount(nil)
	assert.Equal(t, fderrors.CodeInvalidInput, fderrors.CodeOf(err))

	for _, name := range []string{"", "a:b", "a/b"} {
		bad, _, _ := newTestDevice(t, name, nil)
		err := r.Mount(bad)
		require.Error(t, err, "drive %q", name)
		assert.Equal(t, fderrors.CodeInvalidInput, fderrors.CodeOf(err))
	}

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, filedevice.ErrDriveNotFound)
}

func TestRegistry_UnmountAndRename(t *testing.T) {
	r := filedevice.NewRegistry()
	a, _, _ := newTestDevice(t, "a", nil)
	b, _, _ := newTestDevice(t, "b", nil)
	require.NoError(t, r.Mount(a))
	require.NoError(t, r.Mount(b))
	require.NoError(t, r.SetDefault("a"))

	assert.Equal(t, []string{"a", "b"}, r.Drives())

	assert.ErrorIs(t, r.Rename("a", "b"), filedevice.ErrDriveExists)
	assert.ErrorIs(t, r.Rename("x", "y"), filedevice.ErrDriveNotFound)
	require.NoError(t, r.Rename("a", "c"))
	assert.Equal(t, "c", a.DriveName())
	assert.Same(t, a, r.Default())
	assert.Equal(t, []string{"b", "c"}, r.Drives())

	got, err := r.Unmount("c")
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Nil(t, r.Default())

	_, err = r.Unmount("c")
	assert.ErrorIs(t, err, filedevice.ErrDriveNotFound)
	assert.ErrorIs(t, r.SetDefault("c"), filedevice.ErrDriveNotFound)
}

func TestRegistry_Resolve(t *testing.T) {
	r := filedevice.NewRegistry(filedevice.WithDefaultDrive("main"))
	primary, _, _ := newTestDevice(t, "main", nil)
	other, _, _ := newTestDevice(t, "other", nil)
	require.NoError(t, r.Mount(primary))
	require.NoError(t, r.Mount(other))

	tests := []struct {
		path     string
		wantDev  *filedevice.Device
		wantPath string
	}{
		{"plain/file.txt", primary, "plain/file.txt"},
		{"other:file.txt", other, "file.txt"},
		{"other://dir/file.txt", other, "dir/file.txt"},
		{"main:/abs.txt", primary, "abs.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			dev, rest, err := r.Resolve(tt.path)
			require.NoError(t, err)
			assert.Same(t, tt.wantDev, dev)
			assert.Equal(t, tt.wantPath, rest)
		})
	}

	_, _, err := r.Resolve("missing:file")
	assert.ErrorIs(t, err, filedevice.ErrDriveNotFound)

	empty := filedevice.NewRegistry()
	_, _, err = empty.Resolve("file")
	assert.ErrorIs(t, err, filedevice.ErrNoDefault)
}

func TestRegistry_FileOperations(t *testing.T) {
	r := filedevice.NewRegistry()
	dev, _, a := newTestDevice(t, "data", map[string]string{"blob": hundredBytes})
	require.NoError(t, r.Mount(dev))

	var h filedevice.Handle
	served, err := r.Open(&h, "data:blob", filedevice.OpenRead)
	require.NoError(t, err)
	assert.Same(t, dev, served)
	require.NoError(t, h.Close())

	size, err := r.FileSize("data://blob")
	require.NoError(t, err)
	assert.Equal(t, int64(100), size)

	arg := &filedevice.LoadArg{Path: "data:blob"}
	buf, err := r.Load(arg)
	require.NoError(t, err)
	assert.Equal(t, "data:blob", arg.Path)
	assert.Equal(t, hundredBytes, string(buf[:arg.ReadSize]))
	assert.Equal(t, 1, a.Live())

	require.NoError(t, r.Unload(arg.Path, buf))
	assert.Equal(t, 0, a.Live())

	_, err = r.Load(nil)
	assert.ErrorIs(t, err, filedevice.ErrInvalidLoadArg)
}

func TestSplitDrive(t *testing.T) {
	tests := []struct {
		path      string
		wantDrive string
		wantRest  string
		wantOK    bool
	}{
		{"content:a/b", "content", "a/b", true},
		{"content://a/b", "content", "a/b", true},
		{"content:", "content", "", true},
		{"a/b", "", "a/b", false},
		{":a", "", ":a", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			drive, rest, ok := filedevice.SplitDrive(tt.path)
			assert.Equal(t, tt.wantDrive, drive)
			assert.Equal(t, tt.wantRest, rest)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
