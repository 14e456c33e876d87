package calendar

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// Window is the permitted survey range around one anniversary.
type Window struct {
	Open        civil.Date `json:"open_date"`
	Close       civil.Date `json:"close_date"`
	Anniversary civil.Date `json:"anniversary"`
	AnchorYear  int        `json:"anchor_anniversary_year"`
}

// Contains reports whether d lies in [Open, Close].
func (w Window) Contains(d civil.Date) bool {
	return !d.Before(w.Open) && !d.After(w.Close)
}

// ComputeWindow returns the symmetric window anniversary ± marginMonths.
func ComputeWindow(anniversary civil.Date, marginMonths int) (Window, error) {
	return ComputeRangeWindow(anniversary, marginMonths, marginMonths)
}

// ComputeRangeWindow returns [anniversary - before, anniversary + after].
func ComputeRangeWindow(anniversary civil.Date, before, after int) (Window, error) {
	if err := Validate(anniversary); err != nil {
		return Window{}, err
	}
	if before < 0 || after < 0 {
		return Window{}, fmt.Errorf("window margins must be non-negative, got -%dM/+%dM", before, after)
	}
	return Window{
		Open:        addMonths(anniversary, -before),
		Close:       addMonths(anniversary, after),
		Anniversary: anniversary,
		AnchorYear:  anniversary.Year,
	}, nil
}
