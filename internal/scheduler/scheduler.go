// Package scheduler selects, at any instant, the checkable whose next check
// is earliest among all active, authoritative checkables not already
// executing, and dispatches it to a bounded worker pool.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/metrics"
	"github.com/oceanplexian/vigilo/internal/objects"
)

// DefaultMaxConcurrentChecks caps in-flight executions unless overridden.
const DefaultMaxConcurrentChecks = 512

// Executor runs one check. ExecuteCheck reports whether completion is
// asynchronous (remote dispatch); async checks stay in the pending set until
// CheckCompleted is called by the reply handler or the stale-agent sweep.
type Executor interface {
	ExecuteCheck(c *objects.Checkable) (async bool)
}

// PendingCheck is a snapshot entry of one executing check.
type PendingCheck struct {
	Checkable *objects.Checkable
	Since     time.Time
}

// Scheduler owns the idle ordered set and the pending set. All mutation is
// serialized on its mutex; the dispatcher blocks on the condition variable.
type Scheduler struct {
	mu      sync.Mutex
	cv      *sync.Cond
	idle    queue
	items   map[*objects.Checkable]*item
	pending map[*objects.Checkable]time.Time
	stopped bool

	maxConcurrent int
	clock         clock.Clock
	rt            *objects.Runtime
	log           zerolog.Logger
	exec          Executor

	// Authority decides whether this process runs the checkable's checks
	// right now. Nil means always authoritative.
	Authority func(c *objects.Checkable) bool

	jobCh chan *objects.Checkable
	wg    sync.WaitGroup
	done  chan struct{}
}

// New creates a scheduler. maxConcurrent <= 0 selects the default cap.
func New(clk clock.Clock, rt *objects.Runtime, exec Executor, maxConcurrent int, log zerolog.Logger) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentChecks
	}
	s := &Scheduler{
		items:         make(map[*objects.Checkable]*item),
		pending:       make(map[*objects.Checkable]time.Time),
		maxConcurrent: maxConcurrent,
		clock:         clk,
		rt:            rt,
		log:           log,
		exec:          exec,
		jobCh:         make(chan *objects.Checkable, maxConcurrent),
		done:          make(chan struct{}),
	}
	s.cv = sync.NewCond(&s.mu)
	return s
}

// Register inserts an active, authoritative checkable into the idle set.
func (s *Scheduler) Register(c *objects.Checkable) {
	c.Lock()
	active := c.Active
	next := c.NextCheck
	c.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !active || !s.authoritative(c) {
		return
	}
	if _, executing := s.pending[c]; executing {
		return
	}
	s.insertLocked(c, next)
	s.cv.Broadcast()
}

// Unregister removes a checkable from both sets.
func (s *Scheduler) Unregister(c *objects.Checkable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
	delete(s.pending, c)
	metrics.ChecksInFlight.Set(float64(len(s.pending)))
	s.cv.Broadcast()
}

// OnNextCheckChanged re-keys a checkable in the idle set after its next
// check time was mutated. This is the only path that preserves the ordered
// index's invariant.
func (s *Scheduler) OnNextCheckChanged(c *objects.Checkable) {
	c.Lock()
	next := c.NextCheck
	c.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[c]; ok {
		it.next = next
		heap.Fix(&s.idle, it.index)
		s.cv.Broadcast()
	}
}

// ForceNextCheck schedules c for immediate execution and arms the one-shot
// flag that bypasses the active-check and check-period gates once.
func (s *Scheduler) ForceNextCheck(c *objects.Checkable) {
	now := s.clock.Now()
	c.Lock()
	c.ForceNext = true
	c.NextCheck = now
	c.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[c]; ok {
		it.next = now
		heap.Fix(&s.idle, it.index)
	}
	s.cv.Broadcast()
}

// Run starts the worker pool and blocks in the dispatcher loop until Stop.
func (s *Scheduler) Run() {
	for i := 0; i < s.workerCount(); i++ {
		s.wg.Add(1)
		go s.worker()
	}

	s.mu.Lock()
	for !s.stopped {
		if s.idle.Len() == 0 {
			s.cv.Wait()
			continue
		}

		it := s.idle[0]
		c := it.c

		if !s.authoritative(c) {
			s.removeLocked(c)
			continue
		}

		now := s.clock.Now()
		if wait := it.next.Sub(now); wait > 0 {
			s.timedWait(wait)
			continue
		}

		s.removeLocked(c)

		if len(s.pending) >= s.maxConcurrent {
			s.insertLocked(c, it.next)
			s.cv.Wait()
			continue
		}

		// Gate evaluation and dispatch marking read fields the processor
		// and the command handlers mutate under the checkable lock. The
		// lock order is checkable, then scheduler, so release the
		// scheduler mutex first.
		s.mu.Unlock()
		c.Lock()
		forced := c.ForceNext
		if !forced && !s.gatesOpen(c, now) {
			c.UpdateNextCheck(now)
			next := c.NextCheck
			c.Unlock()
			s.mu.Lock()
			s.insertLocked(c, next)
			continue
		}
		c.ForceNext = false
		c.IsExecuting = true
		c.DispatchTime = now
		c.Unlock()

		s.mu.Lock()
		s.removeLocked(c) // re-registered during gate evaluation
		s.pending[c] = now
		metrics.ChecksInFlight.Set(float64(len(s.pending)))
		if latency := now.Sub(it.next); latency > 0 {
			metrics.CheckLatency.Observe(latency.Seconds())
		}
		s.mu.Unlock()
		s.jobCh <- c
		s.mu.Lock()
	}
	s.mu.Unlock()

	close(s.jobCh)
	s.wg.Wait()
	close(s.done)
}

// Stop signals the dispatcher to exit and waits for in-flight workers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.cv.Broadcast()
	s.mu.Unlock()
	<-s.done
}

// CheckCompleted moves a checkable out of the pending set and, if still
// active and authoritative, back into idle. Called by workers for local
// checks and by the remote reply handler or stale-agent sweep otherwise.
func (s *Scheduler) CheckCompleted(c *objects.Checkable) {
	c.Lock()
	c.IsExecuting = false
	active := c.Active
	next := c.NextCheck
	c.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[c]; !ok {
		return
	}
	delete(s.pending, c)
	metrics.ChecksInFlight.Set(float64(len(s.pending)))
	if active && s.authoritative(c) {
		s.insertLocked(c, next)
	}
	s.cv.Broadcast()
}

// PendingSnapshot returns the currently executing checks and their dispatch
// times, for the stale-agent sweep.
func (s *Scheduler) PendingSnapshot() []PendingCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingCheck, 0, len(s.pending))
	for c, since := range s.pending {
		out = append(out, PendingCheck{Checkable: c, Since: since})
	}
	return out
}

// IdleLen returns the idle set size.
func (s *Scheduler) IdleLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle.Len()
}

// PendingLen returns the pending set size.
func (s *Scheduler) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// IsIdle reports whether c sits in the idle set.
func (s *Scheduler) IsIdle(c *objects.Checkable) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[c]
	return ok
}

// IsPending reports whether c is currently executing.
func (s *Scheduler) IsPending(c *objects.Checkable) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[c]
	return ok
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for c := range s.jobCh {
		async := false
		if s.exec != nil {
			async = s.exec.ExecuteCheck(c)
		}
		if !async {
			s.CheckCompleted(c)
		}
	}
}

func (s *Scheduler) workerCount() int {
	if s.maxConcurrent < 64 {
		return s.maxConcurrent
	}
	return 64
}

func (s *Scheduler) authoritative(c *objects.Checkable) bool {
	return s.Authority == nil || s.Authority(c)
}

// gatesOpen is called with the checkable lock held.
func (s *Scheduler) gatesOpen(c *objects.Checkable, now time.Time) bool {
	if !c.EnableActiveChecks {
		return false
	}
	if s.rt != nil && !s.rt.ActiveChecksEnabled() {
		return false
	}
	if c.CheckPeriod != nil && !c.CheckPeriod.IsInside(now) {
		return false
	}
	return true
}

// timedWait blocks on the condition variable for at most d. Called with the
// mutex held.
func (s *Scheduler) timedWait(d time.Duration) {
	t := time.AfterFunc(d, s.cv.Broadcast)
	s.cv.Wait()
	t.Stop()
}

// insertLocked adds c to the idle heap keyed by next, the next check time
// snapshotted under the checkable lock by the caller.
func (s *Scheduler) insertLocked(c *objects.Checkable, next time.Time) {
	if _, ok := s.items[c]; ok {
		return
	}
	it := &item{c: c, next: next, name: c.FullName()}
	s.items[c] = it
	heap.Push(&s.idle, it)
	metrics.IdleQueueDepth.Set(float64(s.idle.Len()))
}

// removeLocked deletes c from the idle heap.
func (s *Scheduler) removeLocked(c *objects.Checkable) {
	it, ok := s.items[c]
	if !ok {
		return
	}
	heap.Remove(&s.idle, it.index)
	delete(s.items, c)
	metrics.IdleQueueDepth.Set(float64(s.idle.Len()))
}
