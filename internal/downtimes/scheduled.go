package downtimes

import (
	"fmt"
	"time"

	"github.com/oceanplexian/vigilo/internal/objects"
)

// A segment whose start is further away than this is left for a later sweep,
// so downtimes materialize shortly before they begin rather than days ahead.
const materializeHorizon = slowSweepPeriod

// ScheduledDowntime materializes recurring downtimes from a weekly time
// period: every sweep it keeps exactly one owned downtime covering the
// running or imminent segment.
type ScheduledDowntime struct {
	Name        string
	HostName    string
	ServiceName string // empty for host downtimes
	Author      string
	Comment     string

	Period   *objects.TimePeriod
	Fixed    bool
	Duration time.Duration // only used when !Fixed
}

// CheckableName returns the full name of the covered checkable.
func (sd *ScheduledDowntime) CheckableName() string {
	if sd.ServiceName != "" {
		return sd.HostName + "!" + sd.ServiceName
	}
	return sd.HostName
}

// Validate rejects definitions the materializer cannot act on.
func (sd *ScheduledDowntime) Validate() error {
	if sd.Name == "" {
		return fmt.Errorf("scheduled downtime: name must be set")
	}
	if sd.HostName == "" {
		return fmt.Errorf("scheduled downtime %s: host_name must be set", sd.Name)
	}
	if sd.Period == nil {
		return fmt.Errorf("scheduled downtime %s: ranges must be set", sd.Name)
	}
	if !sd.Fixed && sd.Duration <= 0 {
		return fmt.Errorf("scheduled downtime %s: duration must be positive for flexible downtimes", sd.Name)
	}
	return nil
}

// AddScheduled registers a scheduled downtime and materializes immediately.
func (m *Manager) AddScheduled(sd *ScheduledDowntime) error {
	if err := sd.Validate(); err != nil {
		return err
	}
	if m.store.Get(sd.CheckableName()) == nil {
		return fmt.Errorf("scheduled downtime %s: no checkable named %q", sd.Name, sd.CheckableName())
	}

	m.mu.Lock()
	if _, dup := m.scheduled[sd.Name]; dup {
		m.mu.Unlock()
		return fmt.Errorf("scheduled downtime %s: name already registered", sd.Name)
	}
	m.scheduled[sd.Name] = sd
	m.mu.Unlock()

	m.materializeOne(sd, m.clock.Now())
	return nil
}

// RemoveScheduled drops the definition. Its owned downtimes stay until they
// expire; the sweep removes them then.
func (m *Manager) RemoveScheduled(name string) {
	m.mu.Lock()
	delete(m.scheduled, name)
	m.mu.Unlock()
}

// MaterializeOnce runs one materializer pass over every scheduled downtime.
func (m *Manager) MaterializeOnce(now time.Time) {
	m.mu.Lock()
	defs := make([]*ScheduledDowntime, 0, len(m.scheduled))
	for _, sd := range m.scheduled {
		defs = append(defs, sd)
	}
	m.mu.Unlock()

	for _, sd := range defs {
		m.materializeOne(sd, now)
	}
}

func (m *Manager) materializeOne(sd *ScheduledDowntime, now time.Time) {
	seg, ok := sd.Period.NextSegment(now)
	if !ok {
		return
	}

	children := m.ownedBy(sd.Name)
	var maxEnd time.Time
	for _, d := range children {
		if d.EndTime.After(maxEnd) {
			maxEnd = d.EndTime
		}
	}
	if !seg.End.After(maxEnd) {
		return // segment already covered
	}

	// A segment overlapping an owned downtime's end extends it in place.
	for _, d := range children {
		if !seg.Start.After(d.EndTime) && seg.End.After(d.EndTime) {
			d.EndTime = seg.End
			m.log.Info().Str("scheduled_downtime", sd.Name).Str("downtime", d.Name).
				Time("end", seg.End).Msg("extended owned downtime")
			return
		}
	}

	// One planned future occurrence at a time.
	for _, d := range children {
		if d.StartTime.After(now) {
			return
		}
	}
	if seg.Start.After(now.Add(materializeHorizon)) {
		return
	}

	d := &objects.Downtime{
		HostName:    sd.HostName,
		ServiceName: sd.ServiceName,
		Author:      sd.Author,
		Comment:     sd.Comment,
		StartTime:   seg.Start,
		EndTime:     seg.End,
		Fixed:       sd.Fixed,
		Duration:    sd.Duration,
		ScheduledBy: sd.Name,
		ConfigOwner: sd.Name,
	}
	if err := m.AddDowntime(d); err != nil {
		m.log.Error().Err(err).Str("scheduled_downtime", sd.Name).
			Msg("failed to materialize downtime")
		return
	}
	m.log.Info().Str("scheduled_downtime", sd.Name).Str("downtime", d.Name).
		Time("start", seg.Start).Time("end", seg.End).Msg("materialized downtime")
}

// ownedBy returns the live downtimes created by the named scheduled
// downtime.
func (m *Manager) ownedBy(name string) []*objects.Downtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*objects.Downtime
	for _, d := range m.downtimes {
		if d.ScheduledBy == name {
			out = append(out, d)
		}
	}
	return out
}
