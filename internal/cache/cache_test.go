package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := New[string, int]()
	c.Set("bitcoin", 1)

	v, ok := c.Get("bitcoin")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Delete("bitcoin")
	_, ok = c.Get("bitcoin")
	assert.False(t, ok)
}

func TestCache_ManyOps(t *testing.T) {
	c := New[string, int]()
	c.SetMany(map[string]int{"a": 1, "b": 2, "c": 3})

	got := c.GetMany([]string{"a", "c", "zzz"})
	assert.Equal(t, map[string]int{"a": 1, "c": 3}, got)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, c.Keys())
	assert.ElementsMatch(t, []int{1, 2, 3}, c.Values())
	assert.Equal(t, 3, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(n, n)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}
