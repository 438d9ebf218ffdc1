package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	p := NewPool()
	require.NotNil(t, p)
	assert.NotNil(t, p.small)
	assert.NotNil(t, p.medium)
	assert.NotNil(t, p.large)
	assert.Equal(t, 0, p.Live())
}

func TestPool_Allocate(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		alignment int
		pooled    bool
	}{
		{"small size", 1000, 64, true},
		{"small boundary", SmallBlockSize, 64, true},
		{"medium size", 10000, 64, true},
		{"large size", 100000, 4096, true},
		{"very large size", LargeBlockSize * 2, 64, false},
		{"wide alignment", 100, 8192, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool()

			buf, err := p.Allocate(tt.size, tt.alignment)
			require.NoError(t, err)
			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.size, cap(buf))
			assert.True(t, IsAligned(buf, tt.alignment))
			assert.Equal(t, 1, p.Live())

			p.mu.Lock()
			blockPtr := p.live[address(buf)]
			p.mu.Unlock()
			assert.Equal(t, tt.pooled, blockPtr != nil)

			require.NoError(t, p.Free(buf))
			assert.Equal(t, 0, p.Live())
		})
	}
}

func TestPool_AllocateZeroesReusedBlocks(t *testing.T) {
	p := NewPool()

	buf, err := p.Allocate(128, 64)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0xff
	}
	require.NoError(t, p.Free(buf))

	for i := 0; i < 4; i++ {
		buf, err = p.Allocate(256, 64)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 256), buf)
		require.NoError(t, p.Free(buf))
	}
}

func TestPool_Free(t *testing.T) {
	p := NewPool()

	buf, err := p.Allocate(64, 64)
	require.NoError(t, err)

	require.NoError(t, p.Free(buf))
	assert.ErrorIs(t, p.Free(buf), ErrNotAllocated)
	assert.ErrorIs(t, p.Free(make([]byte, 64)), ErrNotAllocated)
	assert.ErrorIs(t, p.Free(nil), ErrNotAllocated)
}

func TestPool_AllocateInvalid(t *testing.T) {
	p := NewPool()

	_, err := p.Allocate(0, 64)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = p.Allocate(64, 3)
	assert.ErrorIs(t, err, ErrInvalidAlignment)
}
