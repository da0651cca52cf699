package objects

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/oceanplexian/vigilo/internal/flapping"
)

// Kind selects the checkable variant.
type Kind int

const (
	KindHost Kind = iota
	KindService
)

// CheckCommand is the contract the executor consumes. Execute populates cr
// and must respect Timeout via its own machinery; the executor converts
// errors and panics into Unknown results.
type CheckCommand interface {
	Name() string
	Timeout() time.Duration
	Execute(c *Checkable, cr *CheckResult, macros map[string]string, useResolvedMacros bool) error
}

// Checkable is the unit the scheduler dispatches: a host or a service.
// A service is named by (host, short name) and has exactly one owning host.
//
// The state mutex guards the check state machine; the collections mutex
// guards downtime/comment bookkeeping so fanout handlers can touch those
// without deadlocking against the state machine.
type Checkable struct {
	mu     sync.Mutex
	collMu sync.Mutex

	Kind      Kind
	HostName  string
	ShortName string // service only

	host     *Checkable
	services map[string]*Checkable // host only, by short name

	// Configuration.
	CheckCommand        CheckCommand
	CheckInterval       time.Duration
	RetryInterval       time.Duration
	MaxCheckAttempts    int
	CheckPeriod         *TimePeriod
	EnableActiveChecks  bool
	EnablePassiveChecks bool
	EnableNotifications bool
	EnableFlapping      bool
	EnableEventHandler  bool
	Volatile            bool
	CommandEndpoint     string // remote executor name, "" = local

	// Lifecycle.
	Active bool

	// Check state. Guarded by the state mutex.
	StateRaw             ServiceState
	LastStateRaw         ServiceState
	LastHardStateRaw     ServiceState
	StateType            StateType
	LastStateType        StateType
	CheckAttempt         int
	HasBeenChecked       bool
	NextCheck            time.Time
	LastCheck            time.Time
	LastCheckResult      *CheckResult
	LastStateChange      time.Time
	LastHardStateChange  time.Time
	LastReachable        bool
	LastStateOK          time.Time
	LastStateWarning     time.Time
	LastStateCritical    time.Time
	LastStateUnknown     time.Time
	LastStateUnreachable time.Time

	// Execution bookkeeping.
	IsExecuting      bool
	ForceNext        bool // one-shot gate bypass for the next run
	DispatchTime     time.Time
	SchedulingOffset int64

	// Flapping.
	Flap flapping.Detector

	// Acknowledgement.
	Acknowledgement AckType
	AckExpiry       time.Time // zero = never

	// Suppression bookkeeping.
	SuppressedNotifications NotificationType
	StateBeforeSuppression  ServiceState

	// Downtime depth maintained by the overlay.
	DowntimeDepth int

	// Notification counters, reset on recovery.
	NotificationNumber int
}

// NewHost constructs a host checkable with defaults applied.
func NewHost(name string) *Checkable {
	c := &Checkable{
		Kind:     KindHost,
		HostName: name,
		services: make(map[string]*Checkable),
	}
	c.applyDefaults()
	return c
}

// NewService constructs a service checkable owned by host.
func NewService(host *Checkable, shortName string) *Checkable {
	c := &Checkable{
		Kind:      KindService,
		HostName:  host.HostName,
		ShortName: shortName,
		host:      host,
	}
	c.applyDefaults()
	host.services[shortName] = c
	return c
}

func (c *Checkable) applyDefaults() {
	c.CheckInterval = 5 * time.Minute
	c.MaxCheckAttempts = 3
	c.EnableActiveChecks = true
	c.EnablePassiveChecks = true
	c.EnableNotifications = true
	c.EnableFlapping = true
	c.EnableEventHandler = true
	c.Active = true
	c.LastReachable = true
	c.StateType = StateTypeHard
	c.CheckAttempt = 1
	c.SchedulingOffset = rand.Int63n(1 << 30)
	c.Flap.ThresholdLow = 25.0
	c.Flap.ThresholdHigh = 30.0
}

// Lock locks the state mutex.
func (c *Checkable) Lock() { c.mu.Lock() }

// Unlock unlocks the state mutex.
func (c *Checkable) Unlock() { c.mu.Unlock() }

// LockCollections locks the downtime/comment mutex.
func (c *Checkable) LockCollections() { c.collMu.Lock() }

// UnlockCollections unlocks the downtime/comment mutex.
func (c *Checkable) UnlockCollections() { c.collMu.Unlock() }

// IsService reports whether this checkable is a service.
func (c *Checkable) IsService() bool { return c.Kind == KindService }

// Host returns the owning host for a service, nil for a host.
func (c *Checkable) Host() *Checkable { return c.host }

// Services returns a host's services. Nil for services.
func (c *Checkable) Services() map[string]*Checkable { return c.services }

// FullName returns "host" or "host!service".
func (c *Checkable) FullName() string {
	if c.Kind == KindService {
		return c.HostName + "!" + c.ShortName
	}
	return c.HostName
}

// IsOKState reports whether s counts as OK for this variant: services only
// for OK, hosts for anything that derives to Up.
func (c *Checkable) IsOKState(s ServiceState) bool {
	if c.Kind == KindHost {
		return HostStateFromRaw(s) == HostUp
	}
	return s == StateOK
}

// HostState returns the derived host state. Only meaningful for hosts.
func (c *Checkable) HostState() HostState {
	return HostStateFromRaw(c.StateRaw)
}

// EffectiveRetryInterval defaults to check_interval/5 when unset.
func (c *Checkable) EffectiveRetryInterval() time.Duration {
	if c.RetryInterval > 0 {
		return c.RetryInterval
	}
	return c.CheckInterval / 5
}

// Validate rejects configurations the runtime core must never see.
func (c *Checkable) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("checkable %s: check_interval must be positive", c.FullName())
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("checkable %s: retry_interval must not be negative", c.FullName())
	}
	if c.MaxCheckAttempts <= 0 {
		return fmt.Errorf("checkable %s: max_check_attempts must be positive", c.FullName())
	}
	if c.Flap.ThresholdLow > c.Flap.ThresholdHigh {
		return fmt.Errorf("checkable %s: flapping_threshold_low must not exceed flapping_threshold_high", c.FullName())
	}
	if c.Kind == KindService && c.host == nil {
		return fmt.Errorf("checkable %s: service has no owning host", c.FullName())
	}
	return nil
}

// UpdateNextCheck computes the next check time from now plus the effective
// interval, phase-shifted by the per-checkable scheduling offset so
// checkables sharing an interval don't stampede.
func (c *Checkable) UpdateNextCheck(now time.Time) {
	interval := c.CheckInterval
	if c.StateType == StateTypeSoft && c.HasBeenChecked {
		interval = c.EffectiveRetryInterval()
	}
	iv := interval.Seconds()
	if iv <= 0 {
		iv = 60
	}

	off := float64(c.SchedulingOffset)
	nowSecs := float64(now.UnixNano()) / float64(time.Second)
	adj := math.Min(
		0.5+math.Mod(off, 5*iv)/100.0,
		math.Mod(nowSecs*100.0+off, iv*100.0)/100.0,
	)
	c.NextCheck = now.Add(time.Duration((iv - adj) * float64(time.Second)))
}

// IsAcknowledged reports whether an unexpired acknowledgement is set.
func (c *Checkable) IsAcknowledged(now time.Time) bool {
	if c.Acknowledgement == AckNone {
		return false
	}
	if !c.AckExpiry.IsZero() && !c.AckExpiry.After(now) {
		return false
	}
	return true
}

// IsFlapping reports flapping with the global and per-checkable gates applied.
func (c *Checkable) IsFlapping(rt *Runtime) bool {
	return c.Flap.Flapping && c.EnableFlapping && rt.FlappingEnabled()
}
