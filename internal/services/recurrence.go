// Package services provides business logic and orchestration services.
//
// This file implements weekly recurrence expansion: turning a start date,
// an end date and a set of weekdays into the concrete class dates to book.
package services

import (
	"fmt"

	"classbook/internal/core"
)

// MaxScanDays bounds how many candidate days Expand examines. Dates past
// the bound are not produced; this is not an error.
const MaxScanDays = 365

// Expand returns every date in [start, end] whose weekday is in days, in
// ascending order. At most MaxScanDays candidate days are scanned starting
// from start. An empty set or start after end yields an empty result.
func Expand(start, end core.Date, days core.WeekdaySet) []core.Date {
	dates := []core.Date{}
	if days.IsEmpty() || start.IsZero() || end.IsZero() || end.Before(start) {
		return dates
	}
	current := start
	for scanned := 0; scanned < MaxScanDays && !current.After(end); scanned++ {
		if days.Has(current.Weekday()) {
			dates = append(dates, current)
		}
		current = current.AddDays(1)
	}
	return dates
}

// ValidateRange reports ErrInvalidRange when end precedes start.
func ValidateRange(start, end core.Date) error {
	if err := start.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if err := end.Validate(); err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s > %s", core.ErrInvalidRange, start, end)
	}
	return nil
}
