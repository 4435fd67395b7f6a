// Package dedupe skips log entries redelivered by the transport.
//
// Lookup is a fixed-size table of xxHash64 values indexed by the low bits of
// the hash. A new key overwrites whatever occupied its slot, so the table can
// forget a key (a redelivery gets counted twice) but only reports a duplicate
// on a full 64 bit hash match.
package dedupe

import (
	"LogFlowSketcher/internal/prom"
	"math"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Lookup is the antibloom cache.
type Lookup struct {
	keys     []uint64
	sizeMask uint64
}

// New returns a Lookup with the specified capacity in bytes, rounded up to a
// power of two.
func New(size uint64) *Lookup {
	size = uint64(math.Pow(2, math.Ceil(math.Log2(float64(size)))))
	if size < 8 {
		size = 8
	}
	// 8 bytes per slot
	size = size / 8
	return &Lookup{keys: make([]uint64, size), sizeMask: size - 1}
}

// CheckAndSet reports whether val was seen before, and marks it as seen.
func (l *Lookup) CheckAndSet(val []byte) bool {
	prom.DedupeCacheLookups.Inc()
	h := xxhash.Sum64(val)
	old := atomic.SwapUint64(&l.keys[h&l.sizeMask], h)
	if old == h {
		prom.DedupeCacheHits.Inc()
		return true
	}
	if old != 0 {
		prom.CacheCollisions.Inc()
	}
	return false
}

// Slots returns the number of keys the lookup holds at most.
func (l *Lookup) Slots() int {
	return len(l.keys)
}
