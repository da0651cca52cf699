package objects

import (
	"time"

	"github.com/oceanplexian/vigilo/internal/perfdata"
)

// CheckResult carries the outcome of one check execution into the result
// processor. Remote replies and passive submissions use the same type.
type CheckResult struct {
	State           ServiceState
	Output          string
	LongOutput      string
	PerformanceData []perfdata.Value

	ScheduleStart  time.Time
	ScheduleEnd    time.Time
	ExecutionStart time.Time
	ExecutionEnd   time.Time

	CheckSource string
	Active      bool
	Command     string

	// Opaque key/value snapshots for downstream templating.
	VarsBefore map[string]string
	VarsAfter  map[string]string

	// Freshness window for passive results, 0 = none.
	TTL time.Duration
}

// NewCheckResult returns an active result stamped with execution start time.
func NewCheckResult(now time.Time) *CheckResult {
	return &CheckResult{
		Active:         true,
		ExecutionStart: now,
	}
}

// ExecutionTime returns the command execution duration in seconds.
func (cr *CheckResult) ExecutionTime() float64 {
	if cr.ExecutionStart.IsZero() || cr.ExecutionEnd.IsZero() {
		return 0
	}
	return cr.ExecutionEnd.Sub(cr.ExecutionStart).Seconds()
}

// Latency returns the delay between scheduled and actual dispatch in seconds.
func (cr *CheckResult) Latency() float64 {
	if cr.ScheduleStart.IsZero() || cr.ScheduleEnd.IsZero() {
		return 0
	}
	l := cr.ScheduleEnd.Sub(cr.ScheduleStart).Seconds()
	if l < 0 {
		return 0
	}
	return l
}
