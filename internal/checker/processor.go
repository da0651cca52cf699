// Package checker executes checks and applies the soft/hard state machine
// to their results.
package checker

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/dependency"
	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/metrics"
	"github.com/oceanplexian/vigilo/internal/objects"
	"github.com/oceanplexian/vigilo/internal/ringbuf"
)

// Overlay is the downtime view the processor consults. Implemented by the
// downtime manager; nil means no downtimes exist.
type Overlay interface {
	IsInDowntime(c *objects.Checkable) bool
	TriggerFlexible(c *objects.Checkable, now time.Time)
}

// Processor applies check results to checkables and decides which signals
// and notifications follow.
type Processor struct {
	clock    clock.Clock
	rt       *objects.Runtime
	signals  *events.Signals
	graph    *dependency.Graph
	overlay  Overlay
	nodeName string
	log      zerolog.Logger
	stats    *ringbuf.RingBuffer
}

// NewProcessor wires a result processor. overlay may be nil.
func NewProcessor(clk clock.Clock, rt *objects.Runtime, sig *events.Signals, graph *dependency.Graph, overlay Overlay, nodeName string, log zerolog.Logger) *Processor {
	return &Processor{
		clock:    clk,
		rt:       rt,
		signals:  sig,
		graph:    graph,
		overlay:  overlay,
		nodeName: nodeName,
		log:      log,
		stats:    ringbuf.New(15 * 60),
	}
}

// SetOverlay installs the downtime view after construction. The downtime
// manager and the processor reference each other, so one side wires late.
func (p *Processor) SetOverlay(o Overlay) { p.overlay = o }

// outcome collects everything the state machine decided under the lock, so
// all fanout happens after it is released.
type outcome struct {
	stateChange    bool
	emitState      bool
	reachFlipped   bool
	ackCleared     bool
	flapStart      bool
	flapEnd        bool
	flapSuppressed bool
	notify         objects.NotificationType // 0 = none
	replay         bool
	eventHandler   bool
	parents        []*objects.Checkable
	newIsOK        bool
	oldHardState   objects.ServiceState
}

// ProcessCheckResult runs the state machine for one result and emits the
// follow-up signals. Remote replies and passive submissions land here too.
func (p *Processor) ProcessCheckResult(c *objects.Checkable, cr *objects.CheckResult, origin events.Origin) {
	if c == nil || cr == nil || !c.Active {
		return
	}
	if !cr.Active && !c.EnablePassiveChecks {
		p.log.Debug().Str("checkable", c.FullName()).Msg("dropping passive result, passive checks disabled")
		return
	}
	now := p.clock.Now()

	out, accepted := p.applyState(c, cr, now)
	if !accepted {
		return
	}

	// A failing result may start a flexible downtime; that downtime must
	// already be in effect when the notification decision is made below.
	if !out.newIsOK && p.overlay != nil {
		p.overlay.TriggerFlexible(c, now)
	}

	p.decideNotifications(c, cr, now, &out)

	metrics.ResultsProcessed.WithLabelValues(objects.ServiceStateName(cr.State)).Inc()
	p.stats.InsertValue(now.Unix(), 1)
	metrics.ResultsPerMinute.Set(float64(p.ResultsInWindow(60)))
	p.emit(c, cr, now, out, origin)
}

// ResultsInWindow returns how many results were processed during the last
// span seconds. Window tops out at 15 minutes.
func (p *Processor) ResultsInWindow(span int) uint64 {
	return p.stats.UpdateAndGetValues(p.clock.Now().Unix(), span)
}

// applyState runs the state machine from the late-result filter through the
// hard-change bookkeeping under the checkable's lock. Returns false when the
// result is a stale duplicate.
func (p *Processor) applyState(c *objects.Checkable, cr *objects.CheckResult, now time.Time) (outcome, bool) {
	c.Lock()
	defer c.Unlock()

	if c.LastCheckResult != nil && c.LastCheckResult.ExecutionStart.After(cr.ExecutionStart) {
		p.log.Debug().Str("checkable", c.FullName()).Msg("dropping check result older than the last one")
		return outcome{}, false
	}

	if cr.ScheduleStart.IsZero() {
		cr.ScheduleStart = now
	}
	if cr.ScheduleEnd.IsZero() {
		cr.ScheduleEnd = now
	}
	if cr.ExecutionStart.IsZero() {
		cr.ExecutionStart = now
	}
	if cr.ExecutionEnd.IsZero() {
		cr.ExecutionEnd = now
	}
	if cr.CheckSource == "" {
		if c.CommandEndpoint != "" {
			cr.CheckSource = c.CommandEndpoint
		} else {
			cr.CheckSource = p.nodeName
		}
	}

	reachable := p.graph.IsReachable(c, dependency.TypeState)

	oldState := c.StateRaw
	oldStateType := c.StateType
	oldAttempt := c.CheckAttempt
	oldIsOK := c.IsOKState(oldState)
	wasChecked := c.HasBeenChecked

	newIsOK := c.IsOKState(cr.State)
	recovery := false

	switch {
	case newIsOK:
		c.StateType = objects.StateTypeHard
		c.CheckAttempt = 1
		if wasChecked && !oldIsOK {
			recovery = true
		}
		c.NotificationNumber = 0
	case oldIsOK:
		c.StateType = objects.StateTypeSoft
		c.CheckAttempt = 1
	case oldStateType == objects.StateTypeSoft:
		c.StateType = objects.StateTypeSoft
		c.CheckAttempt = oldAttempt + 1
	}
	if c.CheckAttempt >= c.MaxCheckAttempts {
		c.StateType = objects.StateTypeHard
		c.CheckAttempt = 1
	}

	c.LastStateRaw = oldState
	c.LastStateType = oldStateType
	c.StateRaw = cr.State

	switch cr.State {
	case objects.StateOK:
		c.LastStateOK = now
	case objects.StateWarning:
		c.LastStateWarning = now
	case objects.StateCritical:
		c.LastStateCritical = now
	default:
		c.LastStateUnknown = now
	}
	if !reachable {
		c.LastStateUnreachable = now
	}

	out := outcome{newIsOK: newIsOK, oldHardState: c.LastHardStateRaw}
	out.reachFlipped = wasChecked && newIsOK != oldIsOK
	c.LastReachable = reachable

	if c.Kind == objects.KindHost {
		out.stateChange = objects.HostStateFromRaw(oldState) != objects.HostStateFromRaw(cr.State)
	} else {
		out.stateChange = oldState != cr.State
	}
	if !wasChecked && !newIsOK {
		out.stateChange = true
	}

	if out.stateChange {
		c.LastStateChange = now
		if c.Acknowledgement == objects.AckNormal ||
			(c.Acknowledgement == objects.AckSticky && newIsOK) {
			c.Acknowledgement = objects.AckNone
			c.AckExpiry = time.Time{}
			out.ackCleared = true
		}
		out.parents = p.graph.Parents(c)
	}

	hardChange := (c.StateType == objects.StateTypeHard && oldStateType == objects.StateTypeSoft) ||
		(out.stateChange && oldStateType == objects.StateTypeHard && c.StateType == objects.StateTypeHard)
	if hardChange || c.Volatile {
		c.LastHardStateRaw = cr.State
		c.LastHardStateChange = now
	}

	wasFlapping := c.IsFlapping(p.rt)
	c.Flap.Update(now, out.stateChange)
	isFlapping := c.IsFlapping(p.rt)
	out.flapStart = !wasFlapping && isFlapping
	out.flapEnd = wasFlapping && !isFlapping

	// Notification decision inputs, resolved later with the downtime view.
	var want bool
	if hardChange && !(oldStateType == objects.StateTypeSoft && newIsOK) {
		want = true
	}
	if c.Volatile && c.StateType == objects.StateTypeHard {
		want = true
	}
	if oldIsOK && oldStateType == objects.StateTypeSoft {
		want = false
	}
	if c.Volatile && oldIsOK && newIsOK {
		want = false
	}
	if want {
		if recovery {
			out.notify = objects.NotificationRecovery
		} else if !newIsOK {
			out.notify = objects.NotificationProblem
		} else {
			want = false
		}
	}

	out.emitState = out.stateChange || c.StateType == objects.StateTypeSoft ||
		(c.Volatile && !newIsOK)
	out.eventHandler = c.StateType == objects.StateTypeSoft || hardChange || recovery ||
		(c.Volatile && !(oldIsOK && newIsOK))

	c.HasBeenChecked = true
	c.LastCheck = now
	c.LastCheckResult = cr

	if cr.Active {
		c.UpdateNextCheck(now)
	} else {
		c.NextCheck = now.Add(c.CheckInterval)
	}

	return out, true
}

// decideNotifications applies the suppression gates to the tentative
// notification computed by the state machine and records what suppression
// withheld, so FireSuppressedNotifications can replay it later.
func (p *Processor) decideNotifications(c *objects.Checkable, cr *objects.CheckResult, now time.Time, out *outcome) {
	inDowntime := p.overlay != nil && p.overlay.IsInDowntime(c)

	c.Lock()
	defer c.Unlock()

	notificationReachable := p.graph.IsReachable(c, dependency.TypeNotification)
	acked := c.IsAcknowledged(now)
	flapping := c.IsFlapping(p.rt)
	enabled := c.EnableNotifications && p.rt.NotificationsEnabled()

	if out.flapStart || out.flapEnd {
		// Flapping transitions notify unless a downtime covers them or
		// notifications are switched off.
		out.flapSuppressed = inDowntime || !enabled
	}

	suppressed := !enabled || !notificationReachable || inDowntime || acked || flapping
	if out.notify != 0 && suppressed {
		// Remember what was withheld and the state it started from, unless
		// the downtime or acknowledgement side already sampled it.
		if c.SuppressedNotifications == 0 && !inDowntime && !acked {
			c.StateBeforeSuppression = out.oldHardState
		}
		c.SuppressedNotifications |= out.notify
		out.notify = 0
	}

	// Once every suppression reason has lifted, whatever was withheld while
	// one held can be replayed. This is the path that resolves notifications
	// latched while a parent was down, after the parent recovers.
	out.replay = !suppressed && c.SuppressedNotifications != 0
}

// FireSuppressedNotifications replays the notification that suppression
// withheld, once the checkable sits in a hard state differing from the one
// suppression started in. Called when a downtime ends, an acknowledgement is
// cleared, flapping stops or reachability returns; a no-op while any
// suppression reason persists.
func (p *Processor) FireSuppressedNotifications(c *objects.Checkable) {
	now := p.clock.Now()
	inDowntime := p.overlay != nil && p.overlay.IsInDowntime(c)

	c.Lock()
	sup := c.SuppressedNotifications
	if sup == 0 {
		c.Unlock()
		return
	}
	enabled := c.EnableNotifications && p.rt.NotificationsEnabled()
	if !enabled || inDowntime || c.IsAcknowledged(now) || c.IsFlapping(p.rt) ||
		c.StateType != objects.StateTypeHard ||
		!p.graph.IsReachable(c, dependency.TypeNotification) {
		c.Unlock()
		return
	}

	cur := c.StateRaw
	before := c.StateBeforeSuppression
	changed := cur != before
	if c.Kind == objects.KindHost {
		changed = objects.HostStateFromRaw(cur) != objects.HostStateFromRaw(before)
	}

	var nt objects.NotificationType
	if changed {
		if c.IsOKState(cur) {
			if sup&objects.NotificationRecovery != 0 {
				nt = objects.NotificationRecovery
			}
		} else if sup&objects.NotificationProblem != 0 {
			nt = objects.NotificationProblem
		}
	}
	c.SuppressedNotifications = 0
	cr := c.LastCheckResult
	c.Unlock()

	if nt != 0 {
		p.requestNotification(c, nt, cr, events.Origin{})
	}
}

// emit fans out everything the state machine decided, in a fixed order, with
// no locks held.
func (p *Processor) emit(c *objects.Checkable, cr *objects.CheckResult, now time.Time, out outcome, origin events.Origin) {
	p.signals.NewCheckResult.Emit(events.CheckResultEvent{Checkable: c, Result: cr, Origin: origin})

	if out.reachFlipped {
		p.signals.ReachabilityChanged.Emit(events.ReachabilityEvent{
			Checkable: c,
			Result:    cr,
			Children:  p.graph.Children(c),
			Origin:    origin,
		})
	}

	if out.emitState {
		c.Lock()
		st := c.StateType
		c.Unlock()
		p.signals.StateChange.Emit(events.StateChangeEvent{Checkable: c, Result: cr, StateType: st, Origin: origin})
	}

	if out.ackCleared {
		p.signals.AcknowledgementCleared.Emit(events.AcknowledgementClearedEvent{Checkable: c, Origin: origin})
	}

	if out.flapStart && !out.flapSuppressed {
		p.requestNotification(c, objects.NotificationFlappingStart, cr, origin)
	}
	if out.flapEnd && !out.flapSuppressed {
		p.requestNotification(c, objects.NotificationFlappingEnd, cr, origin)
	}
	if out.replay {
		p.FireSuppressedNotifications(c)
	}

	if out.notify != 0 {
		p.requestNotification(c, out.notify, cr, origin)
	}

	if out.eventHandler && c.EnableEventHandler && p.rt.EventHandlersEnabled() {
		p.signals.EventCommandExecuted.Emit(c)
	}

	p.signals.NextCheckUpdated.Emit(c)

	// A state change makes the parents' view stale; recheck them now.
	for _, parent := range out.parents {
		parent.Lock()
		parent.NextCheck = now
		parent.Unlock()
		p.signals.NextCheckUpdated.Emit(parent)
	}
}

// NotificationsAllowed reports whether the global and per-checkable
// notification toggles permit sending for c. The downtime manager consults
// this before its lifecycle notifications.
func (p *Processor) NotificationsAllowed(c *objects.Checkable) bool {
	if !p.rt.NotificationsEnabled() {
		return false
	}
	c.Lock()
	defer c.Unlock()
	return c.EnableNotifications
}

func (p *Processor) requestNotification(c *objects.Checkable, nt objects.NotificationType, cr *objects.CheckResult, origin events.Origin) {
	metrics.NotificationsRequested.WithLabelValues(objects.NotificationTypeName(nt)).Inc()
	p.signals.NotificationsRequested.Emit(events.NotificationRequest{
		Checkable: c,
		Type:      nt,
		Result:    cr,
		Origin:    origin,
	})
}
