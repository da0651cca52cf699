package downtimes

import (
	"fmt"
	"time"

	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/metrics"
	"github.com/oceanplexian/vigilo/internal/objects"
)

// AcknowledgeProblem marks a problem as known. Normal acknowledgements clear
// on any state change, sticky ones only on recovery; a zero expiry never
// expires.
func (m *Manager) AcknowledgeProblem(c *objects.Checkable, author, comment string, ackType objects.AckType, notify, persistent bool, expiry time.Time) error {
	if ackType == objects.AckNone {
		return fmt.Errorf("acknowledge %s: acknowledgement type must be normal or sticky", c.FullName())
	}
	now := m.clock.Now()

	c.Lock()
	if c.IsOKState(c.StateRaw) {
		c.Unlock()
		return fmt.Errorf("acknowledge %s: checkable is not in a problem state", c.FullName())
	}
	if c.SuppressedNotifications == 0 && !c.IsAcknowledged(now) {
		c.StateBeforeSuppression = c.StateRaw
	}
	c.Acknowledgement = ackType
	c.AckExpiry = expiry
	c.Unlock()

	if m.comments != nil && comment != "" {
		m.comments.Add(&objects.Comment{
			HostName:    c.HostName,
			ServiceName: c.ShortName,
			Author:      author,
			Text:        comment,
			EntryType:   objects.CommentAcknowledgement,
			Persistent:  persistent,
			ExpireTime:  expiry,
		})
	}

	m.signals.AcknowledgementSet.Emit(events.AcknowledgementSetEvent{
		Checkable:  c,
		Author:     author,
		Comment:    comment,
		AckType:    ackType,
		Notify:     notify,
		Persistent: persistent,
		Expiry:     expiry,
	})
	if notify && (m.proc == nil || m.proc.NotificationsAllowed(c)) {
		metrics.NotificationsRequested.
			WithLabelValues(objects.NotificationTypeName(objects.NotificationAcknowledgement)).Inc()
		m.signals.NotificationsRequested.Emit(events.NotificationRequest{
			Checkable: c,
			Type:      objects.NotificationAcknowledgement,
			Author:    author,
			Text:      comment,
		})
	}
	return nil
}

// ClearAcknowledgement removes the acknowledgement and its non-persistent
// comments, then replays anything suppression withheld.
func (m *Manager) ClearAcknowledgement(c *objects.Checkable) {
	c.Lock()
	had := c.Acknowledgement != objects.AckNone
	c.Acknowledgement = objects.AckNone
	c.AckExpiry = time.Time{}
	c.Unlock()
	if !had {
		return
	}

	if m.comments != nil {
		m.comments.RemoveByType(c, objects.CommentAcknowledgement)
	}
	m.signals.AcknowledgementCleared.Emit(events.AcknowledgementClearedEvent{Checkable: c})
	if m.proc != nil {
		m.proc.FireSuppressedNotifications(c)
	}
}

// sweepAcknowledgements clears acknowledgements whose expiry has passed.
func (m *Manager) sweepAcknowledgements(now time.Time) {
	for _, c := range m.store.All() {
		c.Lock()
		expired := c.Acknowledgement != objects.AckNone &&
			!c.AckExpiry.IsZero() && !c.AckExpiry.After(now)
		c.Unlock()
		if expired {
			m.log.Info().Str("checkable", c.FullName()).Msg("acknowledgement expired")
			m.ClearAcknowledgement(c)
		}
	}
}
