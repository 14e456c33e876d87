package repository

import (
	"database/sql"
	"time"

	"cloud.google.com/go/civil"
)

// NullDate converts an optional calendar date into a DATE parameter.
func NullDate(d *civil.Date) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.In(time.UTC), Valid: true}
}

// DateFromNull reads a DATE column. The driver returns midnight UTC, so the
// calendar fields are taken as stored.
func DateFromNull(t sql.NullTime) *civil.Date {
	if !t.Valid {
		return nil
	}
	d := civil.DateOf(t.Time.UTC())
	return &d
}
