package downtimes

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/objects"
)

// Comments holds every comment in the process, indexed by name and by
// checkable.
type Comments struct {
	mu          sync.Mutex
	comments    map[string]*objects.Comment
	byCheckable map[string][]*objects.Comment

	clock   clock.Clock
	signals *events.Signals
}

// NewComments creates an empty comment registry.
func NewComments(clk clock.Clock, sig *events.Signals) *Comments {
	return &Comments{
		comments:    make(map[string]*objects.Comment),
		byCheckable: make(map[string][]*objects.Comment),
		clock:       clk,
		signals:     sig,
	}
}

// Add registers a comment, assigning a name when absent.
func (cs *Comments) Add(c *objects.Comment) error {
	if c.Name == "" {
		c.Name = uuid.NewString()
	}
	if c.HostName == "" {
		return fmt.Errorf("comment %s: host_name must be set", c.Name)
	}
	if c.EntryTime.IsZero() {
		c.EntryTime = cs.clock.Now()
	}

	cs.mu.Lock()
	if _, dup := cs.comments[c.Name]; dup {
		cs.mu.Unlock()
		return fmt.Errorf("comment %s: name already registered", c.Name)
	}
	cs.comments[c.Name] = c
	key := c.CheckableName()
	cs.byCheckable[key] = append(cs.byCheckable[key], c)
	cs.mu.Unlock()

	cs.signals.CommentAdded.Emit(c)
	return nil
}

// Get returns the comment by name, nil if unknown.
func (cs *Comments) Get(name string) *objects.Comment {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.comments[name]
}

// For returns the comments attached to a checkable.
func (cs *Comments) For(c *objects.Checkable) []*objects.Comment {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]*objects.Comment(nil), cs.byCheckable[c.FullName()]...)
}

// Remove deletes a comment by name.
func (cs *Comments) Remove(name string) error {
	cs.mu.Lock()
	c, ok := cs.comments[name]
	if !ok {
		cs.mu.Unlock()
		return fmt.Errorf("comment %q does not exist", name)
	}
	cs.removeLocked(c)
	cs.mu.Unlock()

	cs.signals.CommentRemoved.Emit(c)
	return nil
}

// RemoveByType deletes a checkable's comments of one entry type, sparing
// persistent acknowledgement comments.
func (cs *Comments) RemoveByType(c *objects.Checkable, et objects.CommentEntryType) {
	cs.mu.Lock()
	var removed []*objects.Comment
	for _, cm := range cs.byCheckable[c.FullName()] {
		if cm.EntryType != et {
			continue
		}
		if et == objects.CommentAcknowledgement && cm.Persistent {
			continue
		}
		removed = append(removed, cm)
	}
	for _, cm := range removed {
		cs.removeLocked(cm)
	}
	cs.mu.Unlock()

	for _, cm := range removed {
		cs.signals.CommentRemoved.Emit(cm)
	}
}

// SweepExpired drops every comment whose expiry has passed.
func (cs *Comments) SweepExpired(now time.Time) {
	cs.mu.Lock()
	var expired []*objects.Comment
	for _, cm := range cs.comments {
		if cm.IsExpired(now) {
			expired = append(expired, cm)
		}
	}
	for _, cm := range expired {
		cs.removeLocked(cm)
	}
	cs.mu.Unlock()

	for _, cm := range expired {
		cs.signals.CommentRemoved.Emit(cm)
	}
}

// removeLocked unlinks a comment from both indexes. Called with the lock
// held.
func (cs *Comments) removeLocked(c *objects.Comment) {
	delete(cs.comments, c.Name)
	key := c.CheckableName()
	list := cs.byCheckable[key]
	for i, e := range list {
		if e == c {
			cs.byCheckable[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
}
