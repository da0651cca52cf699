package objects

import "time"

// CommentEntryType classifies a comment's origin.
type CommentEntryType int

const (
	CommentUser CommentEntryType = iota + 1
	CommentDowntime
	CommentFlapping
	CommentAcknowledgement
)

// Comment is an operator- or system-attached note on a checkable.
type Comment struct {
	Name        string
	HostName    string
	ServiceName string // empty for host comments
	Author      string
	Text        string
	EntryTime   time.Time
	EntryType   CommentEntryType
	Persistent  bool
	ExpireTime  time.Time // zero = never
}

// CheckableName returns the full name of the checkable this comment is on.
func (c *Comment) CheckableName() string {
	if c.ServiceName != "" {
		return c.HostName + "!" + c.ServiceName
	}
	return c.HostName
}

// IsExpired reports whether the comment's expiry has passed.
func (c *Comment) IsExpired(now time.Time) bool {
	return !c.ExpireTime.IsZero() && !c.ExpireTime.After(now)
}
