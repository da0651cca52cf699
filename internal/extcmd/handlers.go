package extcmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanplexian/vigilo/internal/checker"
	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/downtimes"
	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/objects"
	"github.com/oceanplexian/vigilo/internal/scheduler"
)

// Handlers binds the external command set to the running subsystems.
type Handlers struct {
	clock    clock.Clock
	store    *objects.Store
	rt       *objects.Runtime
	sched    *scheduler.Scheduler
	proc     *checker.Processor
	mgr      *downtimes.Manager
	comments *downtimes.Comments
	log      zerolog.Logger
}

// NewHandlers builds the handler set.
func NewHandlers(clk clock.Clock, store *objects.Store, rt *objects.Runtime, sched *scheduler.Scheduler, proc *checker.Processor, mgr *downtimes.Manager, comments *downtimes.Comments, log zerolog.Logger) *Handlers {
	return &Handlers{
		clock:    clk,
		store:    store,
		rt:       rt,
		sched:    sched,
		proc:     proc,
		mgr:      mgr,
		comments: comments,
		log:      log,
	}
}

// Register wires every supported command into the processor.
func (h *Handlers) Register(p *Processor) {
	p.RegisterHandler("SCHEDULE_FORCED_HOST_CHECK", h.scheduleForcedCheck(false))
	p.RegisterHandler("SCHEDULE_FORCED_SVC_CHECK", h.scheduleForcedCheck(true))
	p.RegisterHandler("ACKNOWLEDGE_HOST_PROBLEM", h.acknowledgeProblem(false))
	p.RegisterHandler("ACKNOWLEDGE_SVC_PROBLEM", h.acknowledgeProblem(true))
	p.RegisterHandler("REMOVE_HOST_ACKNOWLEDGEMENT", h.removeAcknowledgement(false))
	p.RegisterHandler("REMOVE_SVC_ACKNOWLEDGEMENT", h.removeAcknowledgement(true))
	p.RegisterHandler("SCHEDULE_HOST_DOWNTIME", h.scheduleDowntime(false))
	p.RegisterHandler("SCHEDULE_SVC_DOWNTIME", h.scheduleDowntime(true))
	p.RegisterHandler("DEL_HOST_DOWNTIME", h.deleteDowntime)
	p.RegisterHandler("DEL_SVC_DOWNTIME", h.deleteDowntime)
	p.RegisterHandler("PROCESS_HOST_CHECK_RESULT", h.processCheckResult(false))
	p.RegisterHandler("PROCESS_SERVICE_CHECK_RESULT", h.processCheckResult(true))
	p.RegisterHandler("ENABLE_HOST_CHECK", h.setActiveChecks(false, true))
	p.RegisterHandler("DISABLE_HOST_CHECK", h.setActiveChecks(false, false))
	p.RegisterHandler("ENABLE_SVC_CHECK", h.setActiveChecks(true, true))
	p.RegisterHandler("DISABLE_SVC_CHECK", h.setActiveChecks(true, false))
	p.RegisterHandler("ENABLE_NOTIFICATIONS", h.setNotifications(true))
	p.RegisterHandler("DISABLE_NOTIFICATIONS", h.setNotifications(false))
	p.RegisterHandler("ADD_HOST_COMMENT", h.addComment(false))
	p.RegisterHandler("ADD_SVC_COMMENT", h.addComment(true))
	p.RegisterHandler("DEL_HOST_COMMENT", h.deleteComment)
	p.RegisterHandler("DEL_SVC_COMMENT", h.deleteComment)
}

// lookup resolves the target checkable from the leading args. Service
// commands consume two args, host commands one.
func (h *Handlers) lookup(cmd *Command, svc bool) (*objects.Checkable, []string, error) {
	need := 1
	if svc {
		need = 2
	}
	if len(cmd.Args) < need {
		return nil, nil, fmt.Errorf("%s: expected at least %d arguments, got %d", cmd.Name, need, len(cmd.Args))
	}
	var c *objects.Checkable
	if svc {
		c = h.store.GetService(cmd.Args[0], cmd.Args[1])
	} else {
		c = h.store.GetHost(cmd.Args[0])
	}
	if c == nil {
		return nil, nil, fmt.Errorf("%s: no such checkable %q", cmd.Name, cmd.Args[:need])
	}
	return c, cmd.Args[need:], nil
}

func (h *Handlers) scheduleForcedCheck(svc bool) Handler {
	return func(cmd *Command) error {
		c, _, err := h.lookup(cmd, svc)
		if err != nil {
			return err
		}
		h.sched.ForceNextCheck(c)
		return nil
	}
}

func (h *Handlers) acknowledgeProblem(svc bool) Handler {
	return func(cmd *Command) error {
		c, rest, err := h.lookup(cmd, svc)
		if err != nil {
			return err
		}
		if len(rest) < 5 {
			return fmt.Errorf("%s: expected sticky;notify;persistent;author;comment", cmd.Name)
		}
		ackType := objects.AckNormal
		if rest[0] == "2" {
			ackType = objects.AckSticky
		}
		notify := rest[1] != "0"
		persistent := rest[2] != "0"
		return h.mgr.AcknowledgeProblem(c, rest[3], rest[4], ackType, notify, persistent, time.Time{})
	}
}

func (h *Handlers) removeAcknowledgement(svc bool) Handler {
	return func(cmd *Command) error {
		c, _, err := h.lookup(cmd, svc)
		if err != nil {
			return err
		}
		h.mgr.ClearAcknowledgement(c)
		return nil
	}
}

func (h *Handlers) scheduleDowntime(svc bool) Handler {
	return func(cmd *Command) error {
		c, rest, err := h.lookup(cmd, svc)
		if err != nil {
			return err
		}
		if len(rest) < 7 {
			return fmt.Errorf("%s: expected start;end;fixed;trigger;duration;author;comment", cmd.Name)
		}
		start, err := epoch(rest[0])
		if err != nil {
			return fmt.Errorf("%s: start_time: %w", cmd.Name, err)
		}
		end, err := epoch(rest[1])
		if err != nil {
			return fmt.Errorf("%s: end_time: %w", cmd.Name, err)
		}
		durSecs, err := strconv.ParseInt(rest[4], 10, 64)
		if err != nil {
			return fmt.Errorf("%s: duration: %w", cmd.Name, err)
		}

		d := &objects.Downtime{
			HostName:  c.HostName,
			Author:    rest[5],
			Comment:   rest[6],
			StartTime: start,
			EndTime:   end,
			Fixed:     rest[2] != "0",
			Duration:  time.Duration(durSecs) * time.Second,
		}
		if svc {
			d.ServiceName = c.ShortName
		}

		// A trigger argument chains this downtime to an existing one: when
		// the parent triggers, this one does too.
		if trig := rest[3]; trig != "" && trig != "0" {
			parent := h.mgr.Get(trig)
			if parent == nil {
				return fmt.Errorf("%s: trigger downtime %q does not exist", cmd.Name, trig)
			}
			d.TriggeredBy = trig
			if err := h.mgr.AddDowntime(d); err != nil {
				return err
			}
			parent.Triggers = append(parent.Triggers, d.Name)
			return nil
		}
		return h.mgr.AddDowntime(d)
	}
}

func (h *Handlers) deleteDowntime(cmd *Command) error {
	if len(cmd.Args) < 1 {
		return fmt.Errorf("%s: expected downtime name", cmd.Name)
	}
	return h.mgr.RemoveDowntime(cmd.Args[0], true)
}

func (h *Handlers) processCheckResult(svc bool) Handler {
	return func(cmd *Command) error {
		c, rest, err := h.lookup(cmd, svc)
		if err != nil {
			return err
		}
		if len(rest) < 2 {
			return fmt.Errorf("%s: expected return_code;output", cmd.Name)
		}
		code, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%s: return_code: %w", cmd.Name, err)
		}

		now := h.clock.Now()
		cr := &objects.CheckResult{
			Active:         false,
			ExecutionStart: now,
			ExecutionEnd:   now,
			ScheduleStart:  now,
			ScheduleEnd:    now,
			CheckSource:    "external-command",
		}
		if svc {
			cr.State = objects.StateFromExitCode(code)
		} else {
			// Host results use up/down/unreachable codes, not plugin codes.
			if code == 0 {
				cr.State = objects.StateOK
			} else {
				cr.State = objects.StateCritical
			}
		}
		cr.Output, cr.LongOutput, cr.PerformanceData = checker.ParseCheckOutput(rest[1])
		h.proc.ProcessCheckResult(c, cr, events.Origin{})
		return nil
	}
}

func (h *Handlers) setActiveChecks(svc, enabled bool) Handler {
	return func(cmd *Command) error {
		c, _, err := h.lookup(cmd, svc)
		if err != nil {
			return err
		}
		c.Lock()
		c.EnableActiveChecks = enabled
		c.Unlock()
		h.log.Info().Str("checkable", c.FullName()).Bool("enabled", enabled).
			Msg("active checks toggled")
		return nil
	}
}

func (h *Handlers) setNotifications(enabled bool) Handler {
	return func(cmd *Command) error {
		h.rt.SetNotificationsEnabled(enabled)
		h.log.Info().Bool("enabled", enabled).Msg("global notifications toggled")
		return nil
	}
}

func (h *Handlers) addComment(svc bool) Handler {
	return func(cmd *Command) error {
		c, rest, err := h.lookup(cmd, svc)
		if err != nil {
			return err
		}
		if len(rest) < 3 {
			return fmt.Errorf("%s: expected persistent;author;comment", cmd.Name)
		}
		cm := &objects.Comment{
			HostName:   c.HostName,
			Author:     rest[1],
			Text:       rest[2],
			EntryType:  objects.CommentUser,
			Persistent: rest[0] != "0",
		}
		if svc {
			cm.ServiceName = c.ShortName
		}
		return h.comments.Add(cm)
	}
}

func (h *Handlers) deleteComment(cmd *Command) error {
	if len(cmd.Args) < 1 {
		return fmt.Errorf("%s: expected comment name", cmd.Name)
	}
	return h.comments.Remove(cmd.Args[0])
}

func epoch(s string) (time.Time, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0), nil
}
