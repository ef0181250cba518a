package dashboard

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ExportColumns is the header row of the CSV export.
var ExportColumns = []string{
	"student_id",
	"created_at",
	"model",
	"answer_1",
	"guideline_1",
	"feedback_1",
	"answer_2",
	"guideline_2",
	"feedback_2",
	"answer_3",
	"guideline_3",
	"feedback_3",
	"submitted_at",
}

// ExportCSV writes table as CSV encoded in UTF-8 with a byte order mark so
// spreadsheet tools pick the right encoding for Korean text.
func ExportCSV(table Table) ([]byte, error) {
	var buf bytes.Buffer
	encoded := transform.NewWriter(&buf, unicode.UTF8BOM.NewEncoder())
	writer := csv.NewWriter(encoded)

	if err := writer.Write(ExportColumns); err != nil {
		return nil, fmt.Errorf("write export header: %w", err)
	}

	for _, row := range table {
		if err := writer.Write(exportRecord(row)); err != nil {
			return nil, fmt.Errorf("write export row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush export: %w", err)
	}
	if err := encoded.Close(); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportFilename names an export produced at now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("student_submissions_%s.csv", now.Format("20060102_150405"))
}

func exportRecord(row Row) []string {
	record := row.Record
	createdAt := record.CreatedAt
	if row.HasTimestamp() {
		createdAt = row.CreatedAt.Format(time.RFC3339Nano)
	}

	return []string{
		record.StudentID.String(),
		createdAt,
		text(record.Model),
		text(record.Answer1),
		text(record.Guideline1),
		text(record.Feedback1),
		text(record.Answer2),
		text(record.Guideline2),
		text(record.Feedback2),
		text(record.Answer3),
		text(record.Guideline3),
		text(record.Feedback3),
		row.SubmittedAt,
	}
}

func text(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
