package tensor

import (
	"errors"
	"sync"
)

// DefaultPoolSize is the element budget used when a pool is created with a
// non-positive size.
const DefaultPoolSize = 1 << 20

// ErrOutOfMemory indicates the pool's element budget is exhausted.
var ErrOutOfMemory = errors.New("tensor: pool exhausted")

// Pool is a budgeted arena for tensor storage. Allocations are released in
// bulk by Reset rather than individually, mirroring the engine's memory-pool
// contract. The pool is safe for concurrent allocation, which the parallel
// executor relies on.
type Pool struct {
	mu       sync.Mutex
	capacity int
	used     int
}

// NewPool creates a pool with a budget of size float32 elements.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{capacity: size}
}

// Alloc reserves n elements from the pool and returns a zeroed buffer.
func (p *Pool) Alloc(n int) ([]float32, error) {
	if n < 0 {
		return nil, errors.New("tensor: negative allocation")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.used+n > p.capacity {
		return nil, ErrOutOfMemory
	}
	p.used += n
	return make([]float32, n), nil
}

// Reset releases the pool's hold on every allocation at once. Tensors handed
// out before the reset must no longer be used by the caller.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used = 0
}

// InUse returns the number of elements currently drawn from the budget.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Capacity returns the pool's total element budget.
func (p *Pool) Capacity() int {
	return p.capacity
}
