package dashboard

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
)

// Summary holds the headline metrics of a table.
type Summary struct {
	TotalCount       int
	DistinctStudents int
	PositiveCount    int
	// LatestSubmission is nil when no row carries a parsable timestamp.
	LatestSubmission *time.Time
	// Accuracy is a percentage rounded to one decimal; nil for an empty table.
	Accuracy *float64
}

// LatestSubmissionText formats LatestSubmission in loc, or returns "".
func (s Summary) LatestSubmissionText(loc *time.Location) string {
	if s.LatestSubmission == nil {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return s.LatestSubmission.In(loc).Format(DisplayLayout)
}

// AccuracyText renders Accuracy like "33.3%", or "" when it is absent.
func (s Summary) AccuracyText() string {
	if s.Accuracy == nil {
		return ""
	}
	return fmt.Sprintf("%.1f%%", *s.Accuracy)
}

// Summarize computes counts and overall accuracy. Every row contributes
// QuestionCount slots to the accuracy denominator; only feedback starting
// with the positive marker counts toward the numerator.
func Summarize(table Table) Summary {
	summary := Summary{TotalCount: len(table)}

	students := make(map[string]struct{}, len(table))
	for _, row := range table {
		students[row.StudentID()] = struct{}{}

		if row.HasTimestamp() && (summary.LatestSubmission == nil || row.CreatedAt.After(*summary.LatestSubmission)) {
			latest := row.CreatedAt
			summary.LatestSubmission = &latest
		}

		for _, question := range row.Record.Questions() {
			if question.IsPositive() {
				summary.PositiveCount++
			}
		}
	}
	summary.DistinctStudents = len(students)

	if slots := len(table) * models.QuestionCount; slots > 0 {
		accuracy := math.Round(float64(summary.PositiveCount)/float64(slots)*1000) / 10
		summary.Accuracy = &accuracy
	}

	return summary
}
