package objects

import (
	"sync"
	"time"
)

// Runtime holds process-global mutable state with an explicit lifecycle.
// Tests construct their own instead of sharing package globals.
type Runtime struct {
	mu sync.Mutex

	NodeName     string
	ProgramStart time.Time

	enableActiveChecks  bool
	enableNotifications bool
	enableFlapping      bool
	enableEventHandlers bool
}

// NewRuntime returns a runtime with everything enabled, started at start.
func NewRuntime(nodeName string, start time.Time) *Runtime {
	return &Runtime{
		NodeName:            nodeName,
		ProgramStart:        start,
		enableActiveChecks:  true,
		enableNotifications: true,
		enableFlapping:      true,
		enableEventHandlers: true,
	}
}

// Uptime returns the process uptime at now.
func (rt *Runtime) Uptime(now time.Time) time.Duration {
	return now.Sub(rt.ProgramStart)
}

// ActiveChecksEnabled reports the global active-check toggle.
func (rt *Runtime) ActiveChecksEnabled() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.enableActiveChecks
}

// SetActiveChecksEnabled flips the global active-check toggle.
func (rt *Runtime) SetActiveChecksEnabled(v bool) {
	rt.mu.Lock()
	rt.enableActiveChecks = v
	rt.mu.Unlock()
}

// NotificationsEnabled reports the global notification toggle.
func (rt *Runtime) NotificationsEnabled() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.enableNotifications
}

// SetNotificationsEnabled flips the global notification toggle.
func (rt *Runtime) SetNotificationsEnabled(v bool) {
	rt.mu.Lock()
	rt.enableNotifications = v
	rt.mu.Unlock()
}

// FlappingEnabled reports the global flap detection toggle.
func (rt *Runtime) FlappingEnabled() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.enableFlapping
}

// SetFlappingEnabled flips the global flap detection toggle.
func (rt *Runtime) SetFlappingEnabled(v bool) {
	rt.mu.Lock()
	rt.enableFlapping = v
	rt.mu.Unlock()
}

// EventHandlersEnabled reports the global event handler toggle.
func (rt *Runtime) EventHandlersEnabled() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.enableEventHandlers
}

// SetEventHandlersEnabled flips the global event handler toggle.
func (rt *Runtime) SetEventHandlersEnabled(v bool) {
	rt.mu.Lock()
	rt.enableEventHandlers = v
	rt.mu.Unlock()
}
