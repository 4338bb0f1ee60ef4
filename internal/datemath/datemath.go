// Package datemath is the single authority for the month-based date
// arithmetic demands use to derive end dates.
package datemath

import "time"

// Layout is the civil-date format used throughout storage and the API.
const Layout = "2006-01-02"

// AddMonths adds n calendar months to d, clamping to the last day of the
// target month when d's day-of-month does not exist there (e.g. Jan 31 + 1
// month = Feb 28/29). It never rolls into the following month.
func AddMonths(d time.Time, n int) time.Time {
	months := int(d.Month()) - 1 + n
	year := d.Year() + months/12
	month := time.Month(months%12 + 1)
	if months < 0 && months%12 != 0 {
		year--
		month = time.Month(months%12 + 12 + 1)
	}
	day := d.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, d.Location())
}

// EndDate derives a demand's end date from its start date and duration.
func EndDate(start time.Time, durationMonths int) time.Time {
	return AddMonths(start, durationMonths)
}

// Date builds a civil date in UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Parse parses a civil date string in Layout.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}

// Format renders a civil date string in Layout.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// DaysBetween returns the inclusive day count of [start, end].
func DaysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// DaysFrom returns the exclusive day offset of t from start.
func DaysFrom(start, t time.Time) int {
	return int(t.Sub(start).Hours() / 24)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
