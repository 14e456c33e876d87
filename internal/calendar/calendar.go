// Package calendar holds the date arithmetic used by the survey calculators.
// Every value is a civil.Date: a year-month-day with no clock or zone attached.
package calendar

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// InvalidDateError reports an input that is not a well-formed calendar date.
type InvalidDateError struct {
	Input  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid date %q", e.Input)
	}
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

// Validate returns an *InvalidDateError when d is not a real calendar day.
func Validate(d civil.Date) error {
	if !d.IsValid() {
		return &InvalidDateError{Input: d.String(), Reason: "not a calendar day"}
	}
	return nil
}

// AddMonths returns the date n calendar months after d. The day of month is
// clamped to the last day of the target month, so Jan 31 + 1 is Feb 28 (or 29).
func AddMonths(d civil.Date, n int) (civil.Date, error) {
	if err := Validate(d); err != nil {
		return civil.Date{}, err
	}
	return addMonths(d, n), nil
}

func addMonths(d civil.Date, n int) civil.Date {
	// month index from year 0, so negative offsets roll the year back
	total := d.Year*12 + int(d.Month) - 1 + n
	year := total / 12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}

	out := civil.Date{Year: year, Month: time.Month(month + 1), Day: d.Day}
	if last := DaysInMonth(out.Year, out.Month); out.Day > last {
		out.Day = last
	}
	return out
}

// DaysBetween returns b - a in whole days. The result is negative when b is
// before a.
func DaysBetween(a, b civil.Date) (int, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	return b.DaysSince(a), nil
}

// DaysInMonth returns the number of days in month m of year y.
func DaysInMonth(y int, m time.Month) int {
	switch m {
	case time.February:
		if IsLeapYear(y) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// IsLeapYear reports whether y is a Gregorian leap year.
func IsLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// DayMonthIn places a day/month pair in year y, clamping Feb 29 to Feb 28 in
// common years.
func DayMonthIn(day int, month time.Month, year int) civil.Date {
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// Today returns the calendar date of t in loc. Callers resolve "now" once at
// the edge and pass the result down.
func Today(t time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(t.In(loc))
}
