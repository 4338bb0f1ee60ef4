// Package sequence validates stage transitions: a demand's recorded stages
// form a strict ordinal chain starting at 0 with no skips, repeats, or
// reversals.
package sequence

import "fmt"

// InvalidSequenceError reports an out-of-order stage recording. Expected is
// the only ordinal that would have been legal.
type InvalidSequenceError struct {
	Expected int
	Got      int
}

func (e InvalidSequenceError) Error() string {
	if e.Expected == 0 {
		return fmt.Sprintf("first stage must be 0 (Demand to be Initiated), but got %d", e.Got)
	}
	return fmt.Sprintf("invalid stage sequence: expected stage %d, but got %d", e.Expected, e.Got)
}

// Next returns the only ordinal that may be recorded given the highest
// ordinal recorded so far (nil when no stages are recorded yet).
func Next(maxRecorded *int) int {
	if maxRecorded == nil {
		return 0
	}
	return *maxRecorded + 1
}

// Validate checks that requested is the next legal ordinal after maxRecorded.
func Validate(maxRecorded *int, requested int) error {
	if expected := Next(maxRecorded); requested != expected {
		return InvalidSequenceError{Expected: expected, Got: requested}
	}
	return nil
}
