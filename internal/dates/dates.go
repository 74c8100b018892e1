// Package dates holds the calendar arithmetic shared by the strategy and
// the sync/report jobs. All calculations are in UTC.
package dates

import "time"

// StartOfMonthMillis returns the first instant of now's calendar month in
// epoch milliseconds.
func StartOfMonthMillis(now time.Time) int64 {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start.UnixMilli()
}

// PreviousMonthStartMillis returns the first instant of the previous
// calendar month in epoch milliseconds.
func PreviousMonthStartMillis(now time.Time) int64 {
	now = now.UTC()
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfPrevMonth := firstOfThisMonth.AddDate(0, 0, -1)
	start := time.Date(lastOfPrevMonth.Year(), lastOfPrevMonth.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start.UnixMilli()
}

// YesterdayRangeMillis returns the start and end of the previous UTC day in
// epoch milliseconds.
func YesterdayRangeMillis(now time.Time) (int64, int64) {
	now = now.UTC()
	yesterday := now.AddDate(0, 0, -1)
	start := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	return start.UnixMilli(), end.UnixMilli()
}

// Last24hRangeMillis returns the trailing 24 hour window ending at now in
// epoch milliseconds.
func Last24hRangeMillis(now time.Time) (int64, int64) {
	now = now.UTC()
	return now.Add(-24 * time.Hour).UnixMilli(), now.UnixMilli()
}
