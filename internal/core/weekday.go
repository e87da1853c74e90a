package core

import (
	"fmt"
	"strings"
	"time"
)

// WeekdaySet is a set of weekdays, Sunday through Saturday.
type WeekdaySet uint8

// NewWeekdaySet builds a set; repeated days collapse.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// With returns s plus d. Out-of-range values are ignored.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool { return s&0x7f == 0 }

// Days lists the members from Sunday to Saturday.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

// WeekdaysFromInts converts 0=Sunday..6=Saturday indexes, the form the
// scheduling form submits.
func WeekdaysFromInts(days []int) (WeekdaySet, error) {
	var s WeekdaySet
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, fmt.Errorf("invalid weekday index %d", d)
		}
		s = s.With(time.Weekday(d))
	}
	return s, nil
}
