package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolResetsOnPut(t *testing.T) {
	type item struct{ n int }
	p := NewPool(func() *item { return &item{} }, func(i *item) { i.n = 0 })

	v := p.Get()
	v.n = 7
	p.Put(v)

	// sync.Pool may or may not hand the same value back; either way it is
	// reset.
	assert.Zero(t, p.Get().n)
	p.Put(nil)
}

func TestBufferPool(t *testing.T) {
	p := NewBufferPool(16, 64)

	b := p.Get()
	assert.Zero(t, len(*b))
	assert.GreaterOrEqual(t, cap(*b), 16)

	*b = append(*b, make([]byte, 200)...)
	p.Put(b)
	assert.Zero(t, len(*b))
	assert.Equal(t, 16, cap(*b))

	small := p.Get()
	*small = append(*small, 1, 2, 3)
	p.Put(small)
	assert.Zero(t, len(*small))
}
