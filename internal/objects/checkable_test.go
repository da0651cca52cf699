package objects

import (
	"testing"
	"time"
)

func TestFullName(t *testing.T) {
	h := NewHost("web1")
	if h.FullName() != "web1" {
		t.Errorf("host full name: %s", h.FullName())
	}
	s := NewService(h, "http")
	if s.FullName() != "web1!http" {
		t.Errorf("service full name: %s", s.FullName())
	}
	if s.Host() != h {
		t.Error("service must reference its owning host")
	}
	if h.Services()["http"] != s {
		t.Error("host must index its services by short name")
	}
}

func TestIsOKState(t *testing.T) {
	h := NewHost("web1")
	s := NewService(h, "http")

	if !h.IsOKState(StateWarning) {
		t.Error("warning derives to Up for a host")
	}
	if s.IsOKState(StateWarning) {
		t.Error("warning is not OK for a service")
	}
	if h.IsOKState(StateCritical) || h.IsOKState(StateUnknown) {
		t.Error("critical/unknown derive to Down for a host")
	}
}

func TestHostStateDerivation(t *testing.T) {
	cases := []struct {
		raw  ServiceState
		want HostState
	}{
		{StateOK, HostUp},
		{StateWarning, HostUp},
		{StateCritical, HostDown},
		{StateUnknown, HostDown},
	}
	for _, tc := range cases {
		if got := HostStateFromRaw(tc.raw); got != tc.want {
			t.Errorf("HostStateFromRaw(%s) = %s, want %s",
				ServiceStateName(tc.raw), HostStateName(got), HostStateName(tc.want))
		}
	}
}

func TestEffectiveRetryInterval(t *testing.T) {
	h := NewHost("web1")
	h.CheckInterval = 5 * time.Minute
	if h.EffectiveRetryInterval() != time.Minute {
		t.Errorf("default retry interval should be check_interval/5, got %s", h.EffectiveRetryInterval())
	}
	h.RetryInterval = 30 * time.Second
	if h.EffectiveRetryInterval() != 30*time.Second {
		t.Errorf("explicit retry interval ignored")
	}
}

func TestUpdateNextCheckWithinInterval(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	for offset := int64(0); offset < 10; offset++ {
		h := NewHost("web1")
		h.CheckInterval = time.Minute
		h.SchedulingOffset = offset * 12345
		h.UpdateNextCheck(now)

		if !h.NextCheck.After(now) {
			t.Errorf("offset %d: next check %s not after now", h.SchedulingOffset, h.NextCheck)
		}
		if h.NextCheck.After(now.Add(time.Minute)) {
			t.Errorf("offset %d: next check %s beyond one interval", h.SchedulingOffset, h.NextCheck)
		}
	}
}

func TestUpdateNextCheckUsesRetryIntervalWhenSoft(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	h := NewHost("web1")
	h.CheckInterval = 10 * time.Minute
	h.RetryInterval = time.Minute
	h.HasBeenChecked = true
	h.StateType = StateTypeSoft
	h.UpdateNextCheck(now)

	if h.NextCheck.After(now.Add(time.Minute)) {
		t.Errorf("soft state should reschedule on the retry interval, got %s", h.NextCheck.Sub(now))
	}
}

func TestValidate(t *testing.T) {
	h := NewHost("web1")
	if err := h.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	h.CheckInterval = 0
	if err := h.Validate(); err == nil {
		t.Error("zero check_interval should be rejected")
	}
	h.CheckInterval = time.Minute

	h.MaxCheckAttempts = 0
	if err := h.Validate(); err == nil {
		t.Error("zero max_check_attempts should be rejected")
	}
	h.MaxCheckAttempts = 3

	h.Flap.ThresholdLow = 80
	h.Flap.ThresholdHigh = 20
	if err := h.Validate(); err == nil {
		t.Error("low > high flap thresholds should be rejected")
	}
}

func TestAcknowledgementExpiry(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	h := NewHost("web1")

	if h.IsAcknowledged(now) {
		t.Error("no ack set")
	}

	h.Acknowledgement = AckNormal
	if !h.IsAcknowledged(now) {
		t.Error("ack with zero expiry never expires")
	}

	h.AckExpiry = now.Add(time.Hour)
	if !h.IsAcknowledged(now) {
		t.Error("ack before expiry")
	}
	if h.IsAcknowledged(now.Add(2 * time.Hour)) {
		t.Error("ack after expiry")
	}
}

func TestIsFlappingGates(t *testing.T) {
	rt := NewRuntime("node1", time.Now())
	h := NewHost("web1")
	h.Flap.Flapping = true

	if !h.IsFlapping(rt) {
		t.Error("flapping with all gates open")
	}
	h.EnableFlapping = false
	if h.IsFlapping(rt) {
		t.Error("per-checkable gate should suppress")
	}
	h.EnableFlapping = true
	rt.SetFlappingEnabled(false)
	if h.IsFlapping(rt) {
		t.Error("global gate should suppress")
	}
}
