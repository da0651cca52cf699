package checker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/metrics"
	"github.com/oceanplexian/vigilo/internal/objects"
	"github.com/oceanplexian/vigilo/internal/remote"
	"github.com/oceanplexian/vigilo/internal/scheduler"
)

const (
	staleSweepPeriod  = time.Minute
	staleDispatchAge  = time.Minute
	staleHeartbeatMax = 5 * time.Minute
)

// PendingTracker is the scheduler view the sweep needs: the in-flight set
// and the completion hook.
type PendingTracker interface {
	PendingSnapshot() []scheduler.PendingCheck
	CheckCompleted(c *objects.Checkable)
}

// StaleAgentSweep force-completes remote checks whose agent stopped
// heartbeating, so a dead peer surfaces as a problem instead of a check
// stuck pending forever.
type StaleAgentSweep struct {
	clock    clock.Clock
	registry *remote.Registry
	proc     *Processor
	sched    PendingTracker
	log      zerolog.Logger
}

// NewStaleAgentSweep wires the sweep.
func NewStaleAgentSweep(clk clock.Clock, registry *remote.Registry, proc *Processor, sched PendingTracker, log zerolog.Logger) *StaleAgentSweep {
	return &StaleAgentSweep{
		clock:    clk,
		registry: registry,
		proc:     proc,
		sched:    sched,
		log:      log,
	}
}

// Run sweeps every minute until the context is cancelled.
func (s *StaleAgentSweep) Run(ctx context.Context) error {
	ticker := time.NewTicker(staleSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(s.clock.Now())
		}
	}
}

// SweepOnce force-completes every pending remote check dispatched more than
// a minute ago whose endpoint heartbeat is older than five minutes. Returns
// how many checks were timed out.
func (s *StaleAgentSweep) SweepOnce(now time.Time) int {
	timedOut := 0
	for _, pc := range s.sched.PendingSnapshot() {
		c := pc.Checkable
		if now.Sub(pc.Since) < staleDispatchAge {
			continue
		}

		c.Lock()
		endpointName := c.CommandEndpoint
		c.Unlock()
		if endpointName == "" {
			continue
		}

		ep := s.registry.Get(endpointName)
		if ep != nil && now.Sub(ep.LastHeartbeat()) <= staleHeartbeatMax {
			continue
		}

		s.log.Warn().Str("checkable", c.FullName()).Str("endpoint", endpointName).
			Msg("remote check timed out, agent heartbeat stale")
		metrics.StaleAgentTimeouts.Inc()

		cr := objects.NewCheckResult(now)
		cr.State = objects.StateCritical
		cr.Output = "Agent isn't responding."
		cr.ExecutionEnd = now
		cr.CheckSource = endpointName

		s.proc.ProcessCheckResult(c, cr, events.Origin{})
		s.sched.CheckCompleted(c)
		timedOut++
	}
	return timedOut
}

// CompleteRemote delivers a remote reply: the result goes through the state
// machine, then the pending slot is released.
func CompleteRemote(proc *Processor, sched PendingTracker, c *objects.Checkable, cr *objects.CheckResult, origin events.Origin) {
	proc.ProcessCheckResult(c, cr, origin)
	sched.CheckCompleted(c)
}
