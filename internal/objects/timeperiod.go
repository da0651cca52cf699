package objects

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeRange is a single HH:MM-HH:MM range within one day.
type TimeRange struct {
	StartHour, StartMin int
	EndHour, EndMin     int
}

// TimePeriod answers "is time t inside?" over a weekly set of ranges.
// A nil TimePeriod is always inside (24x7).
type TimePeriod struct {
	Name   string
	Ranges [7][]TimeRange // sunday=0 through saturday=6
}

// Segment is one concrete occurrence of a time period's range on a date.
type Segment struct {
	Start, End time.Time
}

// NewTimePeriod creates an empty time period.
func NewTimePeriod(name string) *TimePeriod {
	return &TimePeriod{Name: name}
}

// SetDay parses "HH:MM-HH:MM,HH:MM-HH:MM" and assigns it to a weekday.
func (tp *TimePeriod) SetDay(weekday time.Weekday, spec string) error {
	ranges, err := ParseTimeRanges(spec)
	if err != nil {
		return fmt.Errorf("timeperiod %q day %s: %w", tp.Name, weekday, err)
	}
	tp.Ranges[int(weekday)] = ranges
	return nil
}

// IsInside reports whether t falls within the period.
func (tp *TimePeriod) IsInside(t time.Time) bool {
	if tp == nil {
		return true
	}
	minute := t.Hour()*60 + t.Minute()
	for _, r := range tp.Ranges[int(t.Weekday())] {
		if minute >= r.StartHour*60+r.StartMin && minute < r.EndHour*60+r.EndMin {
			return true
		}
	}
	return false
}

// NextSegment returns the earliest segment whose end is after now, searching
// up to eight days ahead. The segment may already be running.
func (tp *TimePeriod) NextSegment(now time.Time) (Segment, bool) {
	if tp == nil {
		return Segment{}, false
	}
	var best Segment
	found := false
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for day := 0; day <= 7; day++ {
		date := midnight.AddDate(0, 0, day)
		for _, r := range tp.Ranges[int(date.Weekday())] {
			seg := Segment{
				Start: date.Add(time.Duration(r.StartHour)*time.Hour + time.Duration(r.StartMin)*time.Minute),
				End:   date.Add(time.Duration(r.EndHour)*time.Hour + time.Duration(r.EndMin)*time.Minute),
			}
			if !seg.End.After(now) {
				continue
			}
			if !found || seg.Start.Before(best.Start) {
				best = seg
				found = true
			}
		}
	}
	return best, found
}

// ParseTimeRanges parses "HH:MM-HH:MM,HH:MM-HH:MM,..." into a slice of
// TimeRange.
func ParseTimeRanges(s string) ([]TimeRange, error) {
	if s == "" {
		return nil, nil
	}
	var ranges []TimeRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tr, err := parseOneRange(part)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, tr)
	}
	return ranges, nil
}

func parseOneRange(s string) (TimeRange, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return TimeRange{}, fmt.Errorf("invalid time range: %s", s)
	}
	start, err := parseHHMM(parts[0])
	if err != nil {
		return TimeRange{}, err
	}
	end, err := parseHHMM(parts[1])
	if err != nil {
		return TimeRange{}, err
	}
	return TimeRange{StartHour: start[0], StartMin: start[1], EndHour: end[0], EndMin: end[1]}, nil
}

func parseHHMM(s string) ([2]int, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return [2]int{}, fmt.Errorf("invalid time: %s", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return [2]int{}, fmt.Errorf("invalid hour: %s", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return [2]int{}, fmt.Errorf("invalid minute: %s", parts[1])
	}
	return [2]int{h, m}, nil
}
