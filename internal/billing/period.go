package billing

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPeriod = errors.New("billing: invalid period")

// PreviousMonth returns the calendar month before now in UTC as an inclusive
// range [first day 00:00, last instant of the last day].
func PreviousMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfThis.AddDate(0, -1, 0), firstOfThis.Add(-time.Nanosecond)
}

// PeriodDescription is the human-readable invoice line description.
func PeriodDescription(start time.Time) string {
	return fmt.Sprintf("Usage for %s %d", start.Month(), start.Year())
}

// IdempotencyKey identifies one account's invoice for one period. Payment calls
// derive their keys from it, so a re-run within the provider's key retention
// window cannot double-invoice.
func IdempotencyKey(accountID string, periodStart time.Time) string {
	return fmt.Sprintf("usage-billing:%s:%s", accountID, periodStart.UTC().Format("2006-01-02"))
}

func validatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return fmt.Errorf("%w: [%s, %s]", ErrInvalidPeriod, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
