package statistic

import "errors"

// ErrInvalidConfiguration is returned when a sketch is constructed with unusable parameters.
var ErrInvalidConfiguration = errors.New("invalid sketch configuration")

// Sketch defines the interface for a bounded frequency sketch.
// It supports observing stream items, point queries and retrieving the top-k items.
type Sketch[K comparable] interface {
	Observe(item K) uint64
	Estimate(item K) (HeavyRecord[K], bool)
	TopK(k int) []HeavyRecord[K]
	Metrics() Metrics
	Reset()
}

// HeavyRecord is a tracked item with its estimated count.
// Error is the maximum overestimation of Count.
type HeavyRecord[K comparable] struct {
	Item  K
	Count uint64
	Error uint64
}

// Guaranteed returns the number of occurrences the item is known to have had.
func (r HeavyRecord[K]) Guaranteed() uint64 {
	return r.Count - r.Error
}

// Metrics is a point-in-time view of a sketch's occupancy.
type Metrics struct {
	Capacity  int
	Size      int
	Minimum   uint64
	Observed  uint64
	Evictions uint64
}
