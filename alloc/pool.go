package alloc

import (
	"sync"
)

const (
	// SmallBlockSize defines the size of small pooled blocks (4KB).
	SmallBlockSize = 4 * 1024
	// MediumBlockSize defines the size of medium pooled blocks (64KB).
	MediumBlockSize = 64 * 1024
	// LargeBlockSize defines the size of large pooled blocks (1MB).
	LargeBlockSize = 1024 * 1024

	// PoolAlignment is the alignment of every pooled block. Requests for a larger
	// alignment bypass the pool.
	PoolAlignment = 4096
)

// Pool recycles aligned blocks of three size classes. Requests larger than
// LargeBlockSize, or aligned beyond PoolAlignment, get a dedicated block that is
// not returned to the pool when freed.
type Pool struct {
	small  *sync.Pool
	medium *sync.Pool
	large  *sync.Pool

	mu sync.Mutex
	// live maps the address of each outstanding buffer to its pooled block, or to
	// nil for dedicated blocks.
	live map[uintptr]*[]byte
}

// NewPool creates a pool with the default size classes.
func NewPool() *Pool {
	return &Pool{
		small:  newBlockPool(SmallBlockSize),
		medium: newBlockPool(MediumBlockSize),
		large:  newBlockPool(LargeBlockSize),
		live:   make(map[uintptr]*[]byte),
	}
}

func newBlockPool(size int) *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			buf := alignedBlock(size, PoolAlignment)
			return &buf
		},
	}
}

// Allocate returns a zeroed buffer of size bytes aligned to alignment.
func (p *Pool) Allocate(size, alignment int) ([]byte, error) {
	if err := validate(size, alignment); err != nil {
		return nil, err
	}

	class := p.classFor(size)
	if class == nil || alignment > PoolAlignment {
		buf := alignedBlock(size, alignment)
		p.track(buf, nil)
		return buf, nil
	}

	blockPtr := class.Get().(*[]byte)
	buf := (*blockPtr)[:size:size]
	clear(buf)
	p.track(buf, blockPtr)
	return buf, nil
}

// Free releases buf, returning pooled blocks to their size class.
func (p *Pool) Free(buf []byte) error {
	if len(buf) == 0 {
		return ErrNotAllocated
	}

	p.mu.Lock()
	addr := address(buf)
	blockPtr, ok := p.live[addr]
	if ok {
		delete(p.live, addr)
	}
	p.mu.Unlock()

	if !ok {
		return ErrNotAllocated
	}
	if blockPtr != nil {
		if class := p.classFor(cap(*blockPtr)); class != nil {
			class.Put(blockPtr)
		}
	}
	return nil
}

// Live returns the number of buffers allocated and not yet freed.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func (p *Pool) track(buf []byte, blockPtr *[]byte) {
	p.mu.Lock()
	p.live[address(buf)] = blockPtr
	p.mu.Unlock()
}

func (p *Pool) classFor(size int) *sync.Pool {
	switch {
	case size <= SmallBlockSize:
		return p.small
	case size <= MediumBlockSize:
		return p.medium
	case size <= LargeBlockSize:
		return p.large
	default:
		return nil
	}
}
