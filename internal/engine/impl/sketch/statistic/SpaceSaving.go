package statistic

import (
	"fmt"
	"sync"
)

// counter is a single tracked item. Counters with the same count are chained
// in a bucket, oldest first.
type counter[K comparable] struct {
	item   K
	count  uint64
	err    uint64
	bucket *bucket[K]
	prev   *counter[K]
	next   *counter[K]
}

// bucket groups all counters holding the same count. Buckets form a list
// ordered by ascending count.
type bucket[K comparable] struct {
	count uint64
	head  *counter[K]
	tail  *counter[K]
	prev  *bucket[K]
	next  *bucket[K]
}

// SpaceSaving implements the Space-Saving top-k algorithm over a fixed number
// of counters, using the stream-summary layout so that every update is O(1).
//
// When the sketch is full and a new item arrives, the victim is the item that
// has held the minimum count the longest. TopK breaks ties between equal
// counts the same way: the item that reached the count first is listed first.
//
// SpaceSaving is safe for concurrent use.
type SpaceSaving[K comparable] struct {
	mu        sync.RWMutex
	capacity  int
	counters  map[K]*counter[K]
	min       *bucket[K]
	max       *bucket[K]
	observed  uint64
	evictions uint64
}

var _ Sketch[string] = (*SpaceSaving[string])(nil)

// NewSpaceSaving creates a sketch that tracks at most capacity items.
func NewSpaceSaving[K comparable](capacity int) (*SpaceSaving[K], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfiguration, capacity)
	}
	return &SpaceSaving[K]{
		capacity: capacity,
		counters: make(map[K]*counter[K], capacity),
	}, nil
}

// Observe records one occurrence of item and returns its estimate afterwards.
func (s *SpaceSaving[K]) Observe(item K) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observed++

	if c, ok := s.counters[item]; ok {
		s.increment(c)
		return c.count
	}

	if len(s.counters) < s.capacity {
		c := &counter[K]{item: item, count: 1}
		s.counters[item] = c
		s.insertFirst(c)
		return c.count
	}

	// Full: recycle the oldest counter of the minimum bucket.
	victim := s.min.head
	delete(s.counters, victim.item)
	s.evictions++

	victim.item = item
	victim.err = victim.count
	s.counters[item] = victim
	s.increment(victim)
	return victim.count
}

// Estimate returns the record for item if it is currently tracked.
func (s *SpaceSaving[K]) Estimate(item K) (HeavyRecord[K], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[item]
	if !ok {
		return HeavyRecord[K]{Item: item}, false
	}
	return HeavyRecord[K]{Item: c.item, Count: c.count, Error: c.err}, true
}

// TopK returns up to k tracked items ordered by estimated count, highest first.
func (s *SpaceSaving[K]) TopK(k int) []HeavyRecord[K] {
	if k <= 0 {
		return []HeavyRecord[K]{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	k = min(k, len(s.counters))
	records := make([]HeavyRecord[K], 0, k)
	for b := s.max; b != nil && len(records) < k; b = b.prev {
		for c := b.head; c != nil && len(records) < k; c = c.next {
			records = append(records, HeavyRecord[K]{Item: c.item, Count: c.count, Error: c.err})
		}
	}
	return records
}

// Metrics returns the current occupancy of the sketch.
func (s *SpaceSaving[K]) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := Metrics{
		Capacity:  s.capacity,
		Size:      len(s.counters),
		Observed:  s.observed,
		Evictions: s.evictions,
	}
	if s.min != nil {
		m.Minimum = s.min.count
	}
	return m
}

// Len returns the number of tracked items.
func (s *SpaceSaving[K]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// Capacity returns the maximum number of tracked items.
func (s *SpaceSaving[K]) Capacity() int {
	return s.capacity
}

// Reset drops every counter. The capacity is kept.
func (s *SpaceSaving[K]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = make(map[K]*counter[K], s.capacity)
	s.min, s.max = nil, nil
	s.observed, s.evictions = 0, 0
}

// insertFirst places a new counter with count 1 at the back of the lowest bucket.
func (s *SpaceSaving[K]) insertFirst(c *counter[K]) {
	if s.min == nil || s.min.count != c.count {
		s.insertBucketAfter(nil, &bucket[K]{count: c.count})
	}
	s.min.append(c)
}

// increment moves c to the bucket holding count+1, creating it if needed.
func (s *SpaceSaving[K]) increment(c *counter[K]) {
	from := c.bucket
	c.count++

	to := from.next
	if to == nil || to.count != c.count {
		to = &bucket[K]{count: c.count}
		s.insertBucketAfter(from, to)
	}

	from.remove(c)
	if from.head == nil {
		s.removeBucket(from)
	}
	to.append(c)
}

// insertBucketAfter links b after prev, or at the front when prev is nil.
func (s *SpaceSaving[K]) insertBucketAfter(prev, b *bucket[K]) {
	b.prev = prev
	if prev == nil {
		b.next = s.min
		s.min = b
	} else {
		b.next = prev.next
		prev.next = b
	}
	if b.next != nil {
		b.next.prev = b
	} else {
		s.max = b
	}
}

func (s *SpaceSaving[K]) removeBucket(b *bucket[K]) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		s.min = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		s.max = b.prev
	}
	b.prev, b.next = nil, nil
}

func (b *bucket[K]) append(c *counter[K]) {
	c.bucket = b
	c.next = nil
	c.prev = b.tail
	if b.tail != nil {
		b.tail.next = c
	} else {
		b.head = c
	}
	b.tail = c
}

func (b *bucket[K]) remove(c *counter[K]) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		b.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		b.tail = c.prev
	}
	c.prev, c.next, c.bucket = nil, nil, nil
}
