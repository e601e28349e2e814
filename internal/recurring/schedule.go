package recurring

import (
	"time"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/models"
)

// ValidFrequency reports whether f is a supported frequency.
func ValidFrequency(f models.Frequency) bool {
	switch f {
	case models.FrequencyWeekly, models.FrequencyMonthly,
		models.FrequencyQuarterly, models.FrequencyAnnually:
		return true
	}
	return false
}

// Advance returns the next due date after date for the given frequency.
//
// Weekly adds 7 days. Monthly, quarterly and annually add 1, 3 and 12
// calendar months; when the day of month does not exist in the target month
// it is clamped to that month's last day (Jan 31 -> Feb 29 in 2024).
func Advance(date time.Time, freq models.Frequency) (time.Time, error) {
	switch freq {
	case models.FrequencyWeekly:
		return date.AddDate(0, 0, 7), nil
	case models.FrequencyMonthly:
		return addMonths(date, 1), nil
	case models.FrequencyQuarterly:
		return addMonths(date, 3), nil
	case models.FrequencyAnnually:
		return addMonths(date, 12), nil
	}
	return time.Time{}, apperr.NewValidationError("frequency", string(freq), "unknown frequency")
}

// addMonths is AddDate(0, n, 0) without the overflow into the following month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	target := m + time.Month(n)
	if last := daysIn(y, target, t.Location()); d > last {
		d = last
	}
	return time.Date(y, target, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// day 0 of the following month normalizes to the last day of month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
