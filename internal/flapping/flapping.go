// Package flapping implements the rolling-window state-change oscillation
// measure: a 20-slot circular bit buffer weighted toward recency, with
// hysteresis between a low and a high threshold.
package flapping

import "time"

const slots = 20

// Detector holds per-checkable flapping state. The zero value is usable once
// thresholds are set.
type Detector struct {
	Buffer     uint32 // one bit per slot
	Index      int    // next slot to write, [0,20)
	Current    float64
	Flapping   bool
	LastChange time.Time

	ThresholdLow  float64 // percent
	ThresholdHigh float64 // percent
}

// Update records whether the stored state changed with this result and
// recomputes the weighted percentage. Slot weights run 0.80 + 0.02*i from
// the oldest to the newest entry.
func (d *Detector) Update(now time.Time, stateChanged bool) {
	bit := uint32(1) << d.Index
	if stateChanged {
		d.Buffer |= bit
	} else {
		d.Buffer &^= bit
	}
	d.Index = (d.Index + 1) % slots

	var sum float64
	for k := 0; k < slots; k++ {
		if d.Buffer&(1<<((d.Index+k)%slots)) != 0 {
			sum += 0.80 + 0.02*float64(k)
		}
	}
	d.Current = 100.0 * sum / slots

	// Hysteresis: once flapping, stay until the percentage drops to the low
	// threshold; don't start until it exceeds the high one.
	var next bool
	if d.Flapping {
		next = d.Current > d.ThresholdLow
	} else {
		next = d.Current > d.ThresholdHigh
	}
	if next != d.Flapping {
		d.LastChange = now
	}
	d.Flapping = next
}
