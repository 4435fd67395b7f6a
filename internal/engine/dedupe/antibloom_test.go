package dedupe

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var result bool

func TestNewRoundsUp(t *testing.T) {
	assert.Equal(t, 1, New(0).Slots())
	assert.Equal(t, 2, New(16).Slots())
	assert.Equal(t, 4, New(17).Slots())
	assert.Equal(t, 128, New(1000).Slots())
}

func TestLookup(t *testing.T) {
	l := New(1 << 20)
	assert.False(t, l.CheckAndSet([]byte("req-1")), "empty lookup")
	assert.True(t, l.CheckAndSet([]byte("req-1")), "last set")
	assert.False(t, l.CheckAndSet([]byte("req-2")), "new value")
	assert.True(t, l.CheckAndSet([]byte("req-1")), "still set")
	assert.True(t, l.CheckAndSet([]byte("req-2")), "second still set")
}

func TestLookupEvictsOnCollision(t *testing.T) {
	l := New(16)
	mask := uint64(l.Slots() - 1)

	// find two keys that share a slot
	first := []byte("key-0")
	var second []byte
	for i := 1; i < 1000; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		if xxhash.Sum64(k)&mask == xxhash.Sum64(first)&mask {
			second = k
			break
		}
	}
	require.NotNil(t, second)

	assert.False(t, l.CheckAndSet(first))
	assert.False(t, l.CheckAndSet(second))
	assert.False(t, l.CheckAndSet(first), "was evicted by the colliding key")
}

func BenchmarkLookup(b *testing.B) {
	l := New(100000)
	var seed [1000][]byte
	for i := range seed {
		seed[i] = []byte(fmt.Sprintf("request-%d", rand.Int()))
	}
	b.ReportAllocs()
	for b.Loop() {
		result = l.CheckAndSet(seed[rand.IntN(len(seed))])
	}
}
