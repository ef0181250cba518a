// Package dashboard turns fetched submission records into the views shown on
// the teacher dashboard. Everything here is pure: functions return new tables
// and never modify their input.
package dashboard

import (
	"strings"
	"time"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
)

// DisplayLayout formats submission timestamps for people.
const DisplayLayout = "2006-01-02 15:04"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Row is a normalized submission with its parsed timestamp.
type Row struct {
	Record models.SubmissionRecord
	// CreatedAt is the zero time when the raw value could not be parsed.
	CreatedAt   time.Time
	SubmittedAt string
}

// StudentID returns the text form of the row's student identifier.
func (r Row) StudentID() string {
	return r.Record.StudentID.String()
}

// HasTimestamp reports whether created_at was parsed.
func (r Row) HasTimestamp() bool {
	return !r.CreatedAt.IsZero()
}

// Table is an ordered set of rows.
type Table []Row

// Normalize parses created_at of every record and derives the display
// timestamp in loc. A nil loc means UTC.
func Normalize(records []models.SubmissionRecord, loc *time.Location) Table {
	if loc == nil {
		loc = time.UTC
	}

	table := make(Table, 0, len(records))
	for _, record := range records {
		row := Row{Record: record}
		if parsed, ok := ParseTimestamp(record.CreatedAt); ok {
			row.CreatedAt = parsed
			row.SubmittedAt = parsed.In(loc).Format(DisplayLayout)
		}
		table = append(table, row)
	}
	return table
}

// ParseTimestamp reads the timestamp shapes Postgres and PostgREST emit.
// Values without an offset are taken as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func (t Table) clone() Table {
	out := make(Table, len(t))
	copy(out, t)
	return out
}
