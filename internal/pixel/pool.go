package pixel

import (
	"math/bits"
	"sync"
)

// Size classes are powers of two from 1<<minClassShift to 1<<maxClassShift
// bytes. Larger requests are allocated and dropped without pooling.
const (
	minClassShift = 6
	maxClassShift = 30
)

// Pool is a thread-safe pool for reusing temporary byte planes.
//
// Buffers are grouped into power-of-two size classes, each backed by a
// sync.Pool, so planes of nearby sizes share buffers and idle buffers are
// released by the garbage collector. Processing many distinct image sizes
// therefore retains at most a few buffers per class between collections.
//
// Thread safety: All methods are safe for concurrent use.
type Pool struct {
	classes [maxClassShift + 1]sync.Pool
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// classFor returns the smallest class whose buffers hold n bytes.
func classFor(n int) int {
	if n <= 1<<minClassShift {
		return minClassShift
	}
	return bits.Len(uint(n - 1))
}

// Get returns a zeroed buffer of length n. Its capacity is the size class
// of n, so it can be returned with Put after use.
func (p *Pool) Get(n int) []byte {
	if n <= 0 {
		return nil
	}
	c := classFor(n)
	if c > maxClassShift {
		return make([]byte, n)
	}
	if v, ok := p.classes[c].Get().(*[]byte); ok {
		buf := (*v)[:n]
		clear(buf)
		return buf
	}
	return make([]byte, n, 1<<c)
}

// Put returns a buffer to the pool for reuse. Buffers whose capacity is not
// a pooled size class are discarded.
func (p *Pool) Put(buf []byte) {
	n := cap(buf)
	if n < 1<<minClassShift || n&(n-1) != 0 {
		return
	}
	c := bits.TrailingZeros(uint(n))
	if c > maxClassShift {
		return
	}
	buf = buf[:0]
	p.classes[c].Put(&buf)
}

// defaultPool is the package-level pool for convenient usage.
var defaultPool = NewPool()

// GetBytes retrieves a zeroed buffer from the default pool.
func GetBytes(n int) []byte {
	return defaultPool.Get(n)
}

// PutBytes returns a buffer to the default pool.
func PutBytes(buf []byte) {
	defaultPool.Put(buf)
}
