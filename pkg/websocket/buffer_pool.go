package websocket

import (
	"sync"
)

// BufferPool shares payload buffers between sessions of one process.
type BufferPool struct {
	size int
	pool *sync.Pool
}

// NewBufferPool creates a pool of buffers with capacity size.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: &sync.Pool{
			New: func() any {
				return make([]byte, size)
			},
		},
	}
}

// Get returns a buffer with length size. Buffers smaller than size are never returned.
func (p *BufferPool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	if p == nil || size > p.size {
		return make([]byte, size)
	}

	buf := p.pool.Get().([]byte)
	return buf[:size]
}

// Put returns a buffer to the pool when it was produced by it.
func (p *BufferPool) Put(buf []byte) {
	if p == nil || cap(buf) != p.size {
		return
	}

	buf = buf[:cap(buf)]
	p.pool.Put(buf)
}
