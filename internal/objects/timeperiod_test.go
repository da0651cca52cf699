package objects

import (
	"testing"
	"time"
)

func businessHours(t *testing.T) *TimePeriod {
	t.Helper()
	tp := NewTimePeriod("business")
	for _, day := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		if err := tp.SetDay(day, "09:00-17:00"); err != nil {
			t.Fatal(err)
		}
	}
	return tp
}

func TestIsInside(t *testing.T) {
	tp := businessHours(t)

	monNoon := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) // Monday
	if !tp.IsInside(monNoon) {
		t.Error("Monday noon should be inside")
	}
	monEvening := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	if tp.IsInside(monEvening) {
		t.Error("Monday evening should be outside")
	}
	saturday := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	if tp.IsInside(saturday) {
		t.Error("Saturday should be outside")
	}
}

func TestNilPeriodIsAlwaysInside(t *testing.T) {
	var tp *TimePeriod
	if !tp.IsInside(time.Now()) {
		t.Error("nil time period means 24x7")
	}
}

func TestNextSegmentRunning(t *testing.T) {
	tp := businessHours(t)
	monNoon := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	seg, ok := tp.NextSegment(monNoon)
	if !ok {
		t.Fatal("expected a segment")
	}
	wantStart := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	if !seg.Start.Equal(wantStart) || !seg.End.Equal(wantEnd) {
		t.Errorf("running segment = %v..%v, want %v..%v", seg.Start, seg.End, wantStart, wantEnd)
	}
}

func TestNextSegmentUpcoming(t *testing.T) {
	tp := businessHours(t)
	monEvening := time.Date(2024, 3, 4, 17, 30, 0, 0, time.UTC)

	seg, ok := tp.NextSegment(monEvening)
	if !ok {
		t.Fatal("expected a segment")
	}
	wantStart := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) // Tuesday
	if !seg.Start.Equal(wantStart) {
		t.Errorf("next segment starts %v, want %v", seg.Start, wantStart)
	}
}

func TestNextSegmentNone(t *testing.T) {
	tp := NewTimePeriod("never")
	if _, ok := tp.NextSegment(time.Now()); ok {
		t.Error("empty period has no segments")
	}
}

func TestParseTimeRangesErrors(t *testing.T) {
	if _, err := ParseTimeRanges("09:00"); err == nil {
		t.Error("missing end should fail")
	}
	if _, err := ParseTimeRanges("9am-5pm"); err == nil {
		t.Error("non-numeric should fail")
	}
	ranges, err := ParseTimeRanges("00:00-09:00,17:00-24:00")
	if err != nil || len(ranges) != 2 {
		t.Errorf("two ranges expected, got %v (%v)", ranges, err)
	}
}
