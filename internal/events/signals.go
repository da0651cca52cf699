// Package events is the typed publish-subscribe bus decoupling the state
// machine from notification engines, storage adapters and query front-ends.
//
// Subscribers run synchronously in emission order on the emitter's
// goroutine; anything that needs async behavior hands off internally.
// Emission iterates a copy of the subscriber list, so disconnecting while
// another goroutine emits is safe.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/objects"
)

// Origin describes where an event came from.
type Origin struct {
	Remote       bool
	FromEndpoint string
}

// Signal is a multi-subscriber callback list for one payload type.
type Signal[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber[T]
	log    *zerolog.Logger
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Connect registers fn and returns a disposer that removes it. The disposer
// is safe to call concurrently with Emit.
func (s *Signal[T]) Connect(fn func(T)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}
}

// Emit invokes every subscriber in registration order. A panicking
// subscriber is logged and skipped; it never unwinds into the emitter.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		s.invoke(sub.fn, v)
	}
}

func (s *Signal[T]) invoke(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Error().Interface("panic", r).Msg("signal subscriber panicked")
		}
	}()
	fn(v)
}

// CheckResultEvent is the payload of NewCheckResult.
type CheckResultEvent struct {
	Checkable *objects.Checkable
	Result    *objects.CheckResult
	Origin    Origin
}

// StateChangeEvent is the payload of StateChange.
type StateChangeEvent struct {
	Checkable *objects.Checkable
	Result    *objects.CheckResult
	StateType objects.StateType
	Origin    Origin
}

// ReachabilityEvent is the payload of ReachabilityChanged.
type ReachabilityEvent struct {
	Checkable *objects.Checkable
	Result    *objects.CheckResult
	Children  []*objects.Checkable
	Origin    Origin
}

// NotificationRequest is the payload of NotificationsRequested.
type NotificationRequest struct {
	Checkable *objects.Checkable
	Type      objects.NotificationType
	Result    *objects.CheckResult
	Author    string
	Text      string
	Origin    Origin
}

// AcknowledgementSetEvent is the payload of AcknowledgementSet.
type AcknowledgementSetEvent struct {
	Checkable  *objects.Checkable
	Author     string
	Comment    string
	AckType    objects.AckType
	Notify     bool
	Persistent bool
	Expiry     time.Time
	Origin     Origin
}

// AcknowledgementClearedEvent is the payload of AcknowledgementCleared.
type AcknowledgementClearedEvent struct {
	Checkable *objects.Checkable
	Origin    Origin
}

// Signals is the set of named signals the core emits. One instance is
// threaded through construction; tests build their own.
type Signals struct {
	NewCheckResult         Signal[CheckResultEvent]
	StateChange            Signal[StateChangeEvent]
	ReachabilityChanged    Signal[ReachabilityEvent]
	NotificationsRequested Signal[NotificationRequest]
	AcknowledgementSet     Signal[AcknowledgementSetEvent]
	AcknowledgementCleared Signal[AcknowledgementClearedEvent]
	CommentAdded           Signal[*objects.Comment]
	CommentRemoved         Signal[*objects.Comment]
	DowntimeAdded          Signal[*objects.Downtime]
	DowntimeRemoved        Signal[*objects.Downtime]
	DowntimeStarted        Signal[*objects.Downtime]
	DowntimeTriggered      Signal[*objects.Downtime]
	NextCheckUpdated       Signal[*objects.Checkable]
	EventCommandExecuted   Signal[*objects.Checkable]
}

// NewSignals creates a signal set whose subscriber panics go to log.
func NewSignals(log zerolog.Logger) *Signals {
	s := &Signals{}
	s.NewCheckResult.log = &log
	s.StateChange.log = &log
	s.ReachabilityChanged.log = &log
	s.NotificationsRequested.log = &log
	s.AcknowledgementSet.log = &log
	s.AcknowledgementCleared.log = &log
	s.CommentAdded.log = &log
	s.CommentRemoved.log = &log
	s.DowntimeAdded.log = &log
	s.DowntimeRemoved.log = &log
	s.DowntimeStarted.log = &log
	s.DowntimeTriggered.log = &log
	s.NextCheckUpdated.log = &log
	s.EventCommandExecuted.log = &log
	return s
}
