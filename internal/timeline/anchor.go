package timeline

import "time"

// Anchor is the fixed calendar coordinate used for per-bar metadata and for
// progress splitting. Positions are measured in percentage-point units from
// Jan 1 of the anchor year: one year spans UnitsPerYear units, one month a
// twelfth of that, one day a thirtieth of a month.
type Anchor struct {
	Year         int
	UnitsPerYear float64
}

// Pos projects a civil date onto the anchor coordinate.
func (a Anchor) Pos(t time.Time) float64 {
	monthUnit := a.UnitsPerYear / 12
	return float64(t.Year()-a.Year)*a.UnitsPerYear +
		float64(int(t.Month())-1)*monthUnit +
		float64(t.Day()-1)*monthUnit/30
}

// QuarterOf returns the zero-based calendar quarter of a date.
func QuarterOf(t time.Time) int {
	return (int(t.Month()) - 1) / 3
}
