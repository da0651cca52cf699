// Package ringbuf implements per-second activity counters with windowed sums,
// used for the checks/results-per-interval statistics.
package ringbuf

import "sync"

// RingBuffer holds one counter slot per second over a fixed span.
// Writes for a given timestamp land in slot ts%len; stale slots are zeroed
// lazily as time moves forward.
type RingBuffer struct {
	mu         sync.Mutex
	slots      []uint64
	lastUpdate int64 // unix seconds of the most recent insert/advance
}

// New creates a ring buffer spanning the given number of seconds.
func New(seconds int) *RingBuffer {
	if seconds <= 0 {
		seconds = 60
	}
	return &RingBuffer{slots: make([]uint64, seconds)}
}

// Span returns the buffer length in seconds.
func (rb *RingBuffer) Span() int { return len(rb.slots) }

// InsertValue adds n to the slot for unix timestamp ts.
func (rb *RingBuffer) InsertValue(ts int64, n uint64) {
	rb.mu.Lock()
	rb.advance(ts)
	rb.slots[ts%int64(len(rb.slots))] += n
	rb.mu.Unlock()
}

// UpdateAndGetValues returns the sum of the last span seconds ending at ts.
func (rb *RingBuffer) UpdateAndGetValues(ts int64, span int) uint64 {
	if span <= 0 {
		return 0
	}
	if span > len(rb.slots) {
		span = len(rb.slots)
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.advance(ts)

	var sum uint64
	for i := 0; i < span; i++ {
		sum += rb.slots[(ts-int64(i))%int64(len(rb.slots))]
	}
	return sum
}

// advance zeroes every slot between the last update and ts. Called with the
// lock held.
func (rb *RingBuffer) advance(ts int64) {
	if rb.lastUpdate == 0 {
		rb.lastUpdate = ts
		return
	}
	if ts <= rb.lastUpdate {
		return
	}
	gap := ts - rb.lastUpdate
	if gap >= int64(len(rb.slots)) {
		for i := range rb.slots {
			rb.slots[i] = 0
		}
	} else {
		for t := rb.lastUpdate + 1; t <= ts; t++ {
			rb.slots[t%int64(len(rb.slots))] = 0
		}
	}
	rb.lastUpdate = ts
}
