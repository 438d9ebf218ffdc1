package objfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/devicetest"
)

type object struct {
	data        []byte
	contentType string
}

// memStore is a Store kept in a map.
type memStore struct {
	mu      sync.Mutex
	objects map[string]object
	puts    int
	failPut error
	delay   time.Duration
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]object)}
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, fs.ErrNotExist)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *memStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		return s.failPut
	}
	s.puts++
	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *memStore) Stat(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("stat %q: %w", key, fs.ErrNotExist)
	}
	return int64(len(obj.data)), nil
}

func TestConformance(t *testing.T) {
	devicetest.TestSuite(t, func(t *testing.T, files map[string][]byte) *filedevice.Device {
		store := newMemStore()
		b := New("mem", store, "bucket-prefix", time.Second)
		for name, data := range files {
			store.objects[b.Key(name)] = object{data: data}
		}
		return filedevice.New("objects", b, filedevice.WithAllocator(alloc.NewAligned()))
	})
}

func TestBackend_Key(t *testing.T) {
	assert.Equal(t, "a/b.txt", New("mem", nil, "", 0).Key("/a/b.txt"))
	assert.Equal(t, "root/a/b.txt", New("mem", nil, "/root/", 0).Key("a/b.txt"))
}

func TestBackend_UploadsOnlyChanges(t *testing.T) {
	store := newMemStore()
	store.objects["x.txt"] = object{data: []byte("original")}
	dev := filedevice.New("objects", New("mem", store, "", 0))

	var h filedevice.Handle
	_, err := dev.Open(&h, "x.txt", filedevice.OpenReadWrite)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, 0, store.puts)

	_, err = dev.Open(&h, "x.txt", filedevice.OpenReadWrite)
	require.NoError(t, err)
	_, err = h.Write([]byte("O"))
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, "Original", string(store.objects["x.txt"].data))
	assert.Equal(t, "text/plain; charset=utf-8", store.objects["x.txt"].contentType)

	_, err = dev.Open(&h, "new.txt", filedevice.OpenWrite)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, 2, store.puts)
	assert.Empty(t, store.objects["new.txt"].data)
}

func TestBackend_AccessChecks(t *testing.T) {
	store := newMemStore()
	store.objects["x"] = object{data: []byte("data")}
	dev := filedevice.New("objects", New("mem", store, "", 0))

	var h filedevice.Handle
	_, err := dev.Open(&h, "x", filedevice.OpenRead)
	require.NoError(t, err)
	_, err = h.Write([]byte("y"))
	assert.ErrorIs(t, err, filedevice.ErrReadOnly)
	require.NoError(t, h.Close())

	_, err = dev.Open(&h, "w", filedevice.OpenWrite)
	require.NoError(t, err)
	_, err = h.Read(make([]byte, 1))
	assert.ErrorIs(t, err, fs.ErrPermission)
	require.NoError(t, h.Close())
}

func TestBackend_WriteBeyondMaxObjectSize(t *testing.T) {
	store := newMemStore()
	dev := filedevice.New("objects", New("mem", store, "", 0))

	var h filedevice.Handle
	_, err := dev.Open(&h, "big.bin", filedevice.OpenCreate)
	require.NoError(t, err)

	for _, pos := range []int64{1 << 62, MaxObjectSize} {
		require.NoError(t, h.Seek(pos, filedevice.SeekBegin))
		n, err := h.Write([]byte{1})
		assert.ErrorIs(t, err, filedevice.ErrFileTooLarge)
		assert.Zero(t, n)

		got, err := h.Position()
		require.NoError(t, err)
		assert.Equal(t, pos, got)
	}

	require.NoError(t, h.Close())
	assert.Empty(t, store.objects["big.bin"].data)
}

func TestBackend_UploadFailure(t *testing.T) {
	store := newMemStore()
	store.failPut = errors.New("bucket gone")
	dev := filedevice.New("objects", New("mem", store, "", 0))

	var h filedevice.Handle
	_, err := dev.Open(&h, "out", filedevice.OpenCreate)
	require.NoError(t, err)

	err = h.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	assert.False(t, h.IsOpen())
}

func TestBackend_Timeout(t *testing.T) {
	store := newMemStore()
	store.objects["slow"] = object{data: []byte("x")}
	store.delay = time.Second
	dev := filedevice.New("objects", New("mem", store, "", 10*time.Millisecond))

	var h filedevice.Handle
	_, err := dev.Open(&h, "slow", filedevice.OpenRead)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.IsOpen())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", ContentType([]byte("plain text")))
	assert.Equal(t, "image/png", ContentType([]byte("\x89PNG\r\n\x1a\n0000")))
}
