package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_OrderPreserved(t *testing.T) {
	r := NewRegistry[string]()
	r.Register("c", "third")
	r.Register("a", "first")
	r.Register("b", "second")

	assert.Equal(t, []string{"third", "first", "second"}, r.List())
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_ReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry[int]()
	r.Register("a", 1)
	r.Register("b", 2)
	r.Register("a", 10)

	assert.Equal(t, []int{10, 2}, r.List())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, got)
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry[string]()

	got, ok := r.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, "", got)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("id-%d", n), n)
			r.Get("id-0")
			r.List()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
