package objects

import (
	"fmt"
	"time"
)

// Downtime is a suppression window for one checkable. Fixed downtimes run on
// the calendar; flexible ones last Duration starting at the first in-window
// hard failure.
type Downtime struct {
	Name        string
	HostName    string
	ServiceName string // empty for host downtimes
	Author      string
	Comment     string

	EntryTime time.Time
	StartTime time.Time
	EndTime   time.Time
	Fixed     bool
	Duration  time.Duration // only used when !Fixed

	TriggerTime time.Time // zero = not yet triggered
	TriggeredBy string    // name of the triggering downtime, "" = none
	Triggers    []string  // downtimes to trigger along with this one

	ScheduledBy string // scheduled-downtime parent name, "" = manual
	ConfigOwner string // non-removable while owned and unexpired

	RemoveTime   time.Time
	WasCancelled bool
	Removed      bool
	Active       bool

	// Set once the start notification fired, so depth bookkeeping and the
	// end notification pair up.
	StartNotificationSent bool
}

// CheckableName returns the full name of the checkable this downtime covers.
func (d *Downtime) CheckableName() string {
	if d.ServiceName != "" {
		return d.HostName + "!" + d.ServiceName
	}
	return d.HostName
}

// IsInEffect reports whether the downtime suppresses notifications at now.
func (d *Downtime) IsInEffect(now time.Time) bool {
	if now.Before(d.StartTime) || now.After(d.EndTime) {
		return false
	}
	if d.Fixed {
		return true
	}
	if d.TriggerTime.IsZero() {
		return false
	}
	return now.Before(d.TriggerTime.Add(d.Duration))
}

// IsTriggered reports whether the downtime's trigger time has passed.
func (d *Downtime) IsTriggered(now time.Time) bool {
	return !d.TriggerTime.IsZero() && !d.TriggerTime.After(now)
}

// IsExpired reports whether the downtime can never take effect again.
func (d *Downtime) IsExpired(now time.Time) bool {
	if d.Fixed {
		return d.EndTime.Before(now)
	}
	if d.IsTriggered(now) {
		return !d.IsInEffect(now)
	}
	return d.EndTime.Before(now)
}

// CanBeTriggered reports whether a trigger at now would take effect.
func (d *Downtime) CanBeTriggered(now time.Time) bool {
	if !d.Active || d.Removed || d.IsExpired(now) {
		return false
	}
	if d.IsInEffect(now) && d.IsTriggered(now) {
		return false
	}
	return !now.Before(d.StartTime) && !now.After(d.EndTime)
}

// Validate rejects windows the runtime core must never see.
func (d *Downtime) Validate() error {
	if d.StartTime.IsZero() || d.EndTime.IsZero() {
		return fmt.Errorf("downtime %s: start_time and end_time must be set", d.Name)
	}
	if !d.EndTime.After(d.StartTime) {
		return fmt.Errorf("downtime %s: end_time must be after start_time", d.Name)
	}
	if !d.Fixed && d.Duration <= 0 {
		return fmt.Errorf("downtime %s: duration must be positive for flexible downtimes", d.Name)
	}
	if d.HostName == "" {
		return fmt.Errorf("downtime %s: host_name must be set", d.Name)
	}
	return nil
}
