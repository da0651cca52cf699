package checker

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/metrics"
	"github.com/oceanplexian/vigilo/internal/objects"
	"github.com/oceanplexian/vigilo/internal/remote"
)

// How long a silently-deferred or synthesized remote dispatch pushes out the
// reply window beyond the command timeout.
const remoteReplyGrace = 30 * time.Second

// Below this process uptime a disconnected endpoint is not an error yet; the
// transport may simply not have reconnected after a restart.
const remoteGracePeriod = 5 * time.Minute

// Executor produces a check result for one checkable, locally or by
// delegating to a remote endpoint.
type Executor struct {
	clock    clock.Clock
	rt       *objects.Runtime
	proc     *Processor
	signals  *events.Signals
	registry *remote.Registry
	log      zerolog.Logger
}

// NewExecutor wires an executor.
func NewExecutor(clk clock.Clock, rt *objects.Runtime, proc *Processor, sig *events.Signals, registry *remote.Registry, log zerolog.Logger) *Executor {
	return &Executor{
		clock:    clk,
		rt:       rt,
		proc:     proc,
		signals:  sig,
		registry: registry,
		log:      log,
	}
}

// ExecuteCheck runs the check for c. Returns true when completion is
// asynchronous: the checkable stays pending until the remote reply or the
// stale-agent sweep completes it.
func (e *Executor) ExecuteCheck(c *objects.Checkable) bool {
	now := e.clock.Now()

	c.Lock()
	cmd := c.CheckCommand
	endpointName := c.CommandEndpoint
	scheduleStart := c.NextCheck
	dispatch := c.DispatchTime
	c.Unlock()
	if dispatch.IsZero() {
		dispatch = now
	}

	if endpointName != "" && endpointName != e.registry.LocalName() {
		return e.executeRemote(c, cmd, endpointName, now)
	}

	e.executeLocal(c, cmd, scheduleStart, dispatch, now)
	return false
}

func (e *Executor) executeLocal(c *objects.Checkable, cmd objects.CheckCommand, scheduleStart, dispatch, now time.Time) {
	cr := objects.NewCheckResult(now)
	cr.ScheduleStart = scheduleStart
	if cr.ScheduleStart.IsZero() {
		cr.ScheduleStart = now
	}
	cr.ScheduleEnd = dispatch
	cr.CheckSource = e.registry.LocalName()

	if cmd == nil {
		cr.State = objects.StateUnknown
		cr.Output = "No check command configured"
	} else {
		cr.Command = cmd.Name()
		if err := e.runCommand(c, cmd, cr); err != nil {
			cr.State = objects.StateUnknown
			if cr.Output == "" {
				cr.Output = fmt.Sprintf("Check command '%s' failed: %v", cmd.Name(), err)
			}
		}
	}

	if cr.ExecutionEnd.IsZero() {
		cr.ExecutionEnd = e.clock.Now()
	}
	e.proc.ProcessCheckResult(c, cr, events.Origin{})
}

// runCommand invokes the command, converting a panic into an error so one
// misbehaving command cannot take the worker down.
func (e *Executor) runCommand(c *objects.Checkable, cmd objects.CheckCommand, cr *objects.CheckResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check command panicked: %v", r)
		}
	}()
	return cmd.Execute(c, cr, ResolveMacros(c), true)
}

func (e *Executor) executeRemote(c *objects.Checkable, cmd objects.CheckCommand, endpointName string, now time.Time) bool {
	ep := e.registry.Get(endpointName)

	if ep != nil && ep.Connected() {
		params := remote.ExecuteCommandParams{
			CommandType: "check_command",
			Host:        c.HostName,
			Service:     c.ShortName,
			Macros:      ResolveMacros(c),
		}
		timeout := time.Minute
		if cmd != nil {
			params.Command = cmd.Name()
			timeout = cmd.Timeout()
		}

		msg, err := remote.NewExecuteCommandMessage(params)
		if err == nil {
			err = ep.Send(msg)
		}
		if err != nil {
			e.log.Warn().Err(err).Str("checkable", c.FullName()).
				Str("endpoint", endpointName).Msg("remote dispatch failed")
			e.deferCheck(c, now)
			return false
		}

		// Hold the scheduler off until the reply window closes; the reply
		// handler or the stale-agent sweep completes the pending check.
		c.Lock()
		c.NextCheck = now.Add(timeout + remoteReplyGrace)
		c.Unlock()
		e.signals.NextCheckUpdated.Emit(c)
		metrics.RemoteChecksDispatched.Inc()
		return true
	}

	syncing := ep != nil && ep.Syncing()
	if !syncing && e.rt.Uptime(now) > remoteGracePeriod {
		cr := objects.NewCheckResult(now)
		cr.State = objects.StateUnknown
		cr.Output = fmt.Sprintf("Remote instance '%s' is not connected to '%s'",
			endpointName, e.registry.LocalName())
		cr.ExecutionEnd = now
		e.proc.ProcessCheckResult(c, cr, events.Origin{})
		return false
	}

	e.deferCheck(c, now)
	return false
}

// deferCheck pushes the next attempt out without producing a result.
func (e *Executor) deferCheck(c *objects.Checkable, now time.Time) {
	c.Lock()
	c.UpdateNextCheck(now)
	c.Unlock()
	e.signals.NextCheckUpdated.Emit(c)
}
