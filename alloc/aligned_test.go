package alloc

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fderrors "github.com/input-output-hk/catalyst-forge-libs/filedevice/errors"
)

func TestAligned_Allocate(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		alignment int
	}{
		{"one byte", 1, 64},
		{"exact multiple", 128, 64},
		{"page aligned", 5000, 4096},
		{"byte aligned", 7, 1},
		{"large alignment", 100, 1 << 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAligned()

			buf, err := a.Allocate(tt.size, tt.alignment)
			require.NoError(t, err)
			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.size, cap(buf))
			assert.True(t, IsAligned(buf, tt.alignment))
			assert.Equal(t, 1, a.Live())

			require.NoError(t, a.Free(buf))
			assert.Equal(t, 0, a.Live())
		})
	}
}

func TestAligned_AllocateInvalid(t *testing.T) {
	a := NewAligned()

	_, err := a.Allocate(0, 64)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = a.Allocate(-1, 64)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = a.Allocate(10, 48)
	assert.ErrorIs(t, err, ErrInvalidAlignment)

	_, err = a.Allocate(10, 0)
	assert.ErrorIs(t, err, ErrInvalidAlignment)

	assert.Equal(t, 0, a.Live())
}

func TestAligned_Free(t *testing.T) {
	t.Run("twice", func(t *testing.T) {
		a := NewAligned()
		buf, err := a.Allocate(32, 64)
		require.NoError(t, err)

		require.NoError(t, a.Free(buf))
		assert.ErrorIs(t, a.Free(buf), ErrNotAllocated)
	})

	t.Run("foreign buffer", func(t *testing.T) {
		a := NewAligned()
		err := a.Free(make([]byte, 64))
		assert.ErrorIs(t, err, ErrNotAllocated)
		assert.Equal(t, fderrors.CodeInvalidInput, fderrors.CodeOf(err))
	})

	t.Run("empty buffer", func(t *testing.T) {
		a := NewAligned()
		assert.ErrorIs(t, a.Free(nil), ErrNotAllocated)
	})

	t.Run("other allocator", func(t *testing.T) {
		a, b := NewAligned(), NewAligned()
		buf, err := a.Allocate(16, 64)
		require.NoError(t, err)

		assert.ErrorIs(t, b.Free(buf), ErrNotAllocated)
		assert.NoError(t, a.Free(buf))
	})
}

func TestAligned_Concurrent(t *testing.T) {
	a := NewAligned()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			buf, err := a.Allocate(size, 256)
			if err != nil {
				errs <- err
				return
			}
			if !IsAligned(buf, 256) {
				errs <- errors.New("misaligned buffer")
			}
			errs <- a.Free(buf)
		}(i + 1)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, a.Live())
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, 0, RoundUp(0, 64))
	assert.Equal(t, 64, RoundUp(1, 64))
	assert.Equal(t, 64, RoundUp(64, 64))
	assert.Equal(t, 128, RoundUp(65, 64))
	assert.Equal(t, 4096, RoundUp(4000, 4096))
}

func TestIsAligned(t *testing.T) {
	buf := alignedBlock(16, 128)
	assert.True(t, IsAligned(buf, 128))
	assert.True(t, IsAligned(buf, 1))
	assert.False(t, IsAligned(buf[1:], 2))
	assert.False(t, IsAligned(nil, 64))
	assert.False(t, IsAligned(buf, 0))
}
