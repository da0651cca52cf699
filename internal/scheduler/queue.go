package scheduler

import (
	"time"

	"github.com/oceanplexian/vigilo/internal/objects"
)

// item is one idle checkable keyed by its next check time. The name breaks
// ties so the ordering is stable.
type item struct {
	c     *objects.Checkable
	next  time.Time
	name  string
	index int // heap position, managed by container/heap
}

// queue implements container/heap.Interface as a min-heap on (next, name).
type queue []*item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].next.Equal(q[j].next) {
		return q[i].name < q[j].name
	}
	return q[i].next.Before(q[j].next)
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *queue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}
