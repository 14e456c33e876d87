package calendar

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ISO-like layouts. Timestamps keep the date as written; the zone offset is
// never applied.
var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// Day-first layouts used by the frontend and by extracted certificate text.
// "2" and "1" accept both padded and unpadded values.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
}

// Parse reads a calendar date. "2025-11-28", "2025-11-28T00:00:00" and
// "28/11/2025" all yield the same date.
func Parse(s string) (civil.Date, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, &InvalidDateError{Input: raw, Reason: "empty"}
	}

	layouts := dayFirstLayouts
	if looksISO(s) {
		layouts = isoLayouts
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := civil.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
		if !d.IsValid() {
			break
		}
		return d, nil
	}

	return civil.Date{}, &InvalidDateError{Input: raw, Reason: "unrecognised format"}
}

// ParseOptional treats an empty string as "no date".
func ParseOptional(s string) (*civil.Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func looksISO(s string) bool {
	return len(s) >= 10 && s[4] == '-' && s[7] == '-'
}
