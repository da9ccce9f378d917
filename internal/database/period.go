package database

import (
	"fmt"
	"strings"
	"time"
)

const dateFormat = "2006-01-02"

// MakePeriodID creates a period_id from start and end times as UTC dates.
// If both fall on the same day, returns just the date (e.g., "2024-03-15").
// Otherwise returns a range (e.g., "2024-03-01..2024-03-15").
func MakePeriodID(start, end time.Time) string {
	s, e := start.UTC().Format(dateFormat), end.UTC().Format(dateFormat)
	if s == e {
		return s
	}
	return s + ".." + e
}

// FormatPeriodDisplay formats a period_id for human-readable display.
// Single day: "Mar 15, 2024"
// Range: "Mar 01 - Mar 15, 2024"
func FormatPeriodDisplay(periodID string) string {
	if start, end, ok := strings.Cut(periodID, ".."); ok {
		s, err := time.Parse(dateFormat, start)
		if err != nil {
			return periodID
		}
		e, err := time.Parse(dateFormat, end)
		if err != nil {
			return periodID
		}
		return fmt.Sprintf("%s - %s", s.Format("Jan 02"), e.Format("Jan 02, 2006"))
	}

	d, err := time.Parse(dateFormat, periodID)
	if err != nil {
		return periodID
	}
	return d.Format("Jan 02, 2006")
}
