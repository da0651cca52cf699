// Package downtimes is the suppression overlay: downtime windows,
// acknowledgements and comments layered over the check state machine.
package downtimes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/checker"
	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/metrics"
	"github.com/oceanplexian/vigilo/internal/objects"
)

const (
	// Expiry removal, ack expiry and the scheduled-downtime materializer
	// share the slow sweep; fixed downtimes trigger on the fast one.
	slowSweepPeriod = time.Minute
	fastSweepPeriod = 5 * time.Second
)

// Manager owns every downtime and scheduled downtime in the process.
type Manager struct {
	mu          sync.Mutex
	downtimes   map[string]*objects.Downtime
	byCheckable map[string][]*objects.Downtime
	scheduled   map[string]*ScheduledDowntime

	store    *objects.Store
	comments *Comments
	clock    clock.Clock
	signals  *events.Signals
	proc     *checker.Processor
	log      zerolog.Logger
}

// NewManager wires the overlay. It registers itself as the processor's
// downtime view.
func NewManager(store *objects.Store, comments *Comments, clk clock.Clock, sig *events.Signals, proc *checker.Processor, log zerolog.Logger) *Manager {
	m := &Manager{
		downtimes:   make(map[string]*objects.Downtime),
		byCheckable: make(map[string][]*objects.Downtime),
		scheduled:   make(map[string]*ScheduledDowntime),
		store:       store,
		comments:    comments,
		clock:       clk,
		signals:     sig,
		proc:        proc,
		log:         log,
	}
	if proc != nil {
		proc.SetOverlay(m)
	}
	return m
}

// AddDowntime validates and registers a downtime. A fixed downtime whose
// window already covers now starts immediately; any downtime on an already
// failing checkable triggers right away.
func (m *Manager) AddDowntime(d *objects.Downtime) error {
	if d.Name == "" {
		d.Name = uuid.NewString()
	}
	if err := d.Validate(); err != nil {
		return err
	}
	c := m.store.Get(d.CheckableName())
	if c == nil {
		return fmt.Errorf("downtime %s: no checkable named %q", d.Name, d.CheckableName())
	}
	now := m.clock.Now()
	if d.EntryTime.IsZero() {
		d.EntryTime = now
	}
	d.Active = true

	m.mu.Lock()
	if _, dup := m.downtimes[d.Name]; dup {
		m.mu.Unlock()
		return fmt.Errorf("downtime %s: name already registered", d.Name)
	}
	m.downtimes[d.Name] = d
	key := d.CheckableName()
	m.byCheckable[key] = append(m.byCheckable[key], d)
	m.mu.Unlock()

	m.signals.DowntimeAdded.Emit(d)

	c.Lock()
	failing := !c.IsOKState(c.StateRaw)
	c.Unlock()

	if d.Fixed && d.CanBeTriggered(now) {
		m.TriggerDowntime(d, now)
	} else if failing {
		m.TriggerDowntime(d, now)
	}
	return nil
}

// Get returns the downtime by name, nil if unknown.
func (m *Manager) Get(name string) *objects.Downtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downtimes[name]
}

// DowntimesFor returns the downtimes covering a checkable.
func (m *Manager) DowntimesFor(c *objects.Checkable) []*objects.Downtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*objects.Downtime(nil), m.byCheckable[c.FullName()]...)
}

// IsInDowntime reports whether any downtime suppresses c right now.
func (m *Manager) IsInDowntime(c *objects.Checkable) bool {
	now := m.clock.Now()
	for _, d := range m.DowntimesFor(c) {
		if d.IsInEffect(now) {
			return true
		}
	}
	return false
}

// TriggerFlexible triggers every flexible downtime of c whose window covers
// now. Called by the result processor on each failing result.
func (m *Manager) TriggerFlexible(c *objects.Checkable, now time.Time) {
	for _, d := range m.DowntimesFor(c) {
		if !d.Fixed && d.CanBeTriggered(now) {
			m.TriggerDowntime(d, now)
		}
	}
}

// TriggerDowntime stamps the trigger time, cascades to the downtimes listed
// in Triggers, and runs the start bookkeeping once the window is in effect.
func (m *Manager) TriggerDowntime(d *objects.Downtime, now time.Time) {
	if !d.CanBeTriggered(now) {
		m.startIfInEffect(d, now)
		return
	}
	if d.TriggerTime.IsZero() {
		d.TriggerTime = now
	}

	m.signals.DowntimeTriggered.Emit(d)

	for _, name := range d.Triggers {
		child := m.Get(name)
		if child == nil {
			m.log.Warn().Str("downtime", d.Name).Str("triggers", name).
				Msg("triggered downtime not found")
			continue
		}
		if child.TriggeredBy == "" {
			child.TriggeredBy = d.Name
		}
		m.TriggerDowntime(child, now)
	}

	m.startIfInEffect(d, now)
}

// startIfInEffect runs the one-time start bookkeeping: suppression sampling,
// depth increment, start signal and notification.
func (m *Manager) startIfInEffect(d *objects.Downtime, now time.Time) {
	if d.StartNotificationSent || !d.IsInEffect(now) {
		return
	}
	c := m.store.Get(d.CheckableName())
	if c == nil {
		return
	}
	d.StartNotificationSent = true

	var depth int
	c.LockCollections()
	depth = c.DowntimeDepth
	c.DowntimeDepth++
	c.UnlockCollections()

	if depth == 0 {
		c.Lock()
		if c.SuppressedNotifications == 0 {
			c.StateBeforeSuppression = c.StateRaw
		}
		c.Unlock()
	}

	m.signals.DowntimeStarted.Emit(d)
	m.requestNotification(c, objects.NotificationDowntimeStart)
	m.log.Info().Str("downtime", d.Name).Str("checkable", c.FullName()).
		Msg("downtime started")
}

// RemoveDowntime removes a downtime on operator request. Downtimes owned by
// a scheduled downtime are only removable once expired.
func (m *Manager) RemoveDowntime(name string, cancelled bool) error {
	d := m.Get(name)
	if d == nil {
		return fmt.Errorf("downtime %q does not exist", name)
	}
	now := m.clock.Now()
	if d.ConfigOwner != "" && !d.IsExpired(now) {
		return fmt.Errorf("downtime %s: owned by scheduled downtime %q and not expired", name, d.ConfigOwner)
	}
	m.remove(d, now, cancelled)
	return nil
}

// remove performs the removal bookkeeping regardless of ownership.
func (m *Manager) remove(d *objects.Downtime, now time.Time, cancelled bool) {
	m.mu.Lock()
	delete(m.downtimes, d.Name)
	key := d.CheckableName()
	list := m.byCheckable[key]
	for i, e := range list {
		if e == d {
			m.byCheckable[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	d.Removed = true
	d.RemoveTime = now
	d.WasCancelled = cancelled
	d.Active = false

	m.signals.DowntimeRemoved.Emit(d)

	c := m.store.Get(d.CheckableName())
	if c == nil || !d.StartNotificationSent {
		// A flexible downtime that never triggered ends silently.
		return
	}

	c.LockCollections()
	if c.DowntimeDepth > 0 {
		c.DowntimeDepth--
	}
	depth := c.DowntimeDepth
	c.UnlockCollections()

	if cancelled {
		m.requestNotification(c, objects.NotificationDowntimeRemoved)
	} else {
		m.requestNotification(c, objects.NotificationDowntimeEnd)
	}

	if depth == 0 && m.proc != nil {
		m.proc.FireSuppressedNotifications(c)
	}
}

// Run drives the periodic sweeps until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	slow := time.NewTicker(slowSweepPeriod)
	fast := time.NewTicker(fastSweepPeriod)
	defer slow.Stop()
	defer fast.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fast.C:
			m.TriggerFixedOnce(m.clock.Now())
		case <-slow.C:
			m.SweepOnce(m.clock.Now())
		}
	}
}

// TriggerFixedOnce starts every fixed downtime whose window has opened.
func (m *Manager) TriggerFixedOnce(now time.Time) {
	m.mu.Lock()
	pending := make([]*objects.Downtime, 0, len(m.downtimes))
	for _, d := range m.downtimes {
		if d.Fixed {
			pending = append(pending, d)
		}
	}
	m.mu.Unlock()

	for _, d := range pending {
		if d.CanBeTriggered(now) {
			m.TriggerDowntime(d, now)
		}
	}
}

// SweepOnce runs the slow housekeeping: expired downtimes are removed (with
// end notifications), expired acknowledgements cleared, expired comments
// dropped, and scheduled downtimes materialized.
func (m *Manager) SweepOnce(now time.Time) {
	m.mu.Lock()
	var expired []*objects.Downtime
	for _, d := range m.downtimes {
		if d.IsExpired(now) {
			expired = append(expired, d)
		}
	}
	m.mu.Unlock()
	for _, d := range expired {
		m.log.Info().Str("downtime", d.Name).Msg("removing expired downtime")
		m.remove(d, now, false)
	}

	m.sweepAcknowledgements(now)
	if m.comments != nil {
		m.comments.SweepExpired(now)
	}
	m.MaterializeOnce(now)
}

func (m *Manager) requestNotification(c *objects.Checkable, nt objects.NotificationType) {
	if m.proc != nil && !m.proc.NotificationsAllowed(c) {
		return
	}
	metrics.NotificationsRequested.WithLabelValues(objects.NotificationTypeName(nt)).Inc()
	c.Lock()
	cr := c.LastCheckResult
	c.Unlock()
	m.signals.NotificationsRequested.Emit(events.NotificationRequest{
		Checkable: c,
		Type:      nt,
		Result:    cr,
	})
}
