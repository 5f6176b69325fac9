package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"MediChat/internal/store"
)

func TestGenerateCacheKey(t *testing.T) {
	a := []store.Message{{Role: "user", Content: "headache"}}
	b := []store.Message{{Role: "user", Content: "headache"}}
	c := []store.Message{{Role: "user", Content: "fever"}}

	assert.Equal(t, GenerateCacheKey("sys", a), GenerateCacheKey("sys", b))
	assert.NotEqual(t, GenerateCacheKey("sys", a), GenerateCacheKey("sys", c))
	assert.NotEqual(t, GenerateCacheKey("sys", a), GenerateCacheKey("other", a))
	assert.Len(t, GenerateCacheKey("", nil), 64)
}

func TestGenerateCacheKey_FieldBoundaries(t *testing.T) {
	a := []store.Message{{Role: "user", Content: "ab"}}
	b := []store.Message{{Role: "usera", Content: "b"}}

	assert.NotEqual(t, GenerateCacheKey("", a), GenerateCacheKey("", b))
}

func TestCache_GetPut(t *testing.T) {
	c := New(0)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Put("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Millisecond)
	c.Put("k", "v")

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}
