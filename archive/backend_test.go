package archive

import (
	"encoding/binary"
	"io/fs"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/billy"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/devicetest"
)

func TestConformance(t *testing.T) {
	devicetest.TestSuiteWithOptions(t, func(t *testing.T, files map[string][]byte) *filedevice.Device {
		arc, err := Parse(buildImage(t, files))
		require.NoError(t, err)
		return NewDevice("pack", arc, filedevice.WithAllocator(alloc.NewAligned()))
	}, devicetest.Options{ReadOnly: true})
}

func TestConformance_Mounted(t *testing.T) {
	devicetest.TestSuiteWithOptions(t, func(t *testing.T, files map[string][]byte) *filedevice.Device {
		fsys := memfs.New()
		require.NoError(t, util.WriteFile(fsys, "game.fpak", buildImage(t, files), 0o644))
		src := billy.NewDevice("content", fsys)

		dev, err := Mount("pack", src, "game.fpak", filedevice.WithAllocator(alloc.NewAligned()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = dev.Destroy() })
		return dev
	}, devicetest.Options{ReadOnly: true})
}

func TestMount_UnloadsOnDestroy(t *testing.T) {
	fsys := memfs.New()
	image := buildImage(t, map[string][]byte{"a.txt": []byte("abc")}, WithAlignment(256))
	require.NoError(t, util.WriteFile(fsys, "data.fpak", image, 0o644))

	a := alloc.NewAligned()
	src := billy.NewDevice("content", fsys, filedevice.WithAllocator(a))

	dev, err := Mount("pack", src, "content.fpak")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Nil(t, dev)

	dev, err = Mount("pack", src, "data.fpak")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Live())

	b := dev.Backend().(*Backend)
	assert.True(t, alloc.IsAligned(b.Archive().Image(), 256))

	var h filedevice.Handle
	_, err = dev.Open(&h, "a.txt", filedevice.OpenRead)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))
	require.NoError(t, h.Close())

	require.NoError(t, dev.Destroy())
	assert.Equal(t, 0, a.Live())
	require.NoError(t, dev.Destroy())
}

func TestMount_RejectsMalformedImage(t *testing.T) {
	fsys := memfs.New()
	image := buildImage(t, map[string][]byte{"a.txt": []byte("abc")})
	image[len(image)-1] = 0
	require.NoError(t, util.WriteFile(fsys, "short.fpak", image[:len(image)-2], 0o644))
	require.NoError(t, util.WriteFile(fsys, "junk.fpak", []byte("not an archive"), 0o644))
	huge := buildImage(t, map[string][]byte{"a.txt": []byte("abc")})
	binary.LittleEndian.PutUint32(huge[16:20], 1<<31)
	require.NoError(t, util.WriteFile(fsys, "huge.fpak", huge, 0o644))

	a := alloc.NewAligned()
	src := billy.NewDevice("content", fsys, filedevice.WithAllocator(a))

	_, err := Mount("pack", src, "short.fpak")
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, 0, a.Live())

	_, err = Mount("pack", src, "junk.fpak")
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, 0, a.Live())

	// The declared alignment is refused before any buffer is sized from it.
	_, err = Mount("pack", src, "huge.fpak")
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, 0, a.Live())
}

func TestBackend_Errors(t *testing.T) {
	arc, err := Parse(buildImage(t, map[string][]byte{"dir/a.txt": []byte("abc")}))
	require.NoError(t, err)
	dev := NewDevice("pack", arc)

	var h filedevice.Handle
	_, err = dev.Open(&h, "dir", filedevice.OpenRead)
	assert.ErrorIs(t, err, filedevice.ErrIsDir)

	_, err = dev.Open(&h, "dir/a.txt", filedevice.OpenCreate)
	assert.ErrorIs(t, err, filedevice.ErrReadOnly)

	_, err = dev.FileSize("dir/b.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.NoError(t, dev.Destroy())
}
