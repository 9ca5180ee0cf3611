package billing

import (
	"testing"
	"time"
)

func TestPreviousMonth(t *testing.T) {
	cases := []struct {
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			now:       time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
			wantStart: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 2, 28, 23, 59, 59, 999999999, time.UTC),
		},
		{
			now:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 12, 31, 23, 59, 59, 999999999, time.UTC),
		},
		{
			now:       time.Date(2024, 3, 1, 0, 30, 0, 0, time.FixedZone("UTC+1", 3600)),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC),
		},
	}
	for _, tc := range cases {
		start, end := PreviousMonth(tc.now)
		if !start.Equal(tc.wantStart) || !end.Equal(tc.wantEnd) {
			t.Fatalf("PreviousMonth(%s) = [%s, %s], want [%s, %s]", tc.now, start, end, tc.wantStart, tc.wantEnd)
		}
	}
}

func TestPeriodDescription(t *testing.T) {
	if got := PeriodDescription(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)); got != "Usage for February 2025" {
		t.Fatalf("unexpected description %q", got)
	}
}
