package memory

import "sync"

// Pool is a typed sync.Pool. Reset, when set, runs on every value handed
// back through Put.
type Pool[T any] struct {
	p     sync.Pool
	reset func(*T)
}

func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p:     sync.Pool{New: func() any { return ctor() }},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// NewBufferPool pools byte slices of initial capacity size. A slice that
// grew beyond max is released and replaced by a fresh one of capacity size.
func NewBufferPool(size, max int) *Pool[[]byte] {
	return NewPool(
		func() *[]byte {
			b := make([]byte, 0, size)
			return &b
		},
		func(b *[]byte) {
			if cap(*b) > max {
				*b = make([]byte, 0, size)
				return
			}
			*b = (*b)[:0]
		},
	)
}
