package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// QuestionCount is the number of fixed questions every submission answers.
const QuestionCount = 3

// PositiveFeedbackPrefix marks feedback that assessed an answer as correct.
const PositiveFeedbackPrefix = "O:"

// StudentID is the text form of a student identifier. The upstream table
// stores it either as text or as a number, so decoding accepts both.
type StudentID string

// String returns the identifier text.
func (id StudentID) String() string {
	return string(id)
}

// UnmarshalJSON accepts JSON strings, numbers and null.
func (id *StudentID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("decode student_id: %w", err)
		}
		*id = StudentID(text)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("decode student_id: %w", err)
	}
	*id = StudentID(number.String())
	return nil
}

// Scan implements sql.Scanner for integer and text columns.
func (id *StudentID) Scan(src interface{}) error {
	switch value := src.(type) {
	case nil:
		*id = ""
	case string:
		*id = StudentID(value)
	case []byte:
		*id = StudentID(string(value))
	case int64:
		*id = StudentID(strconv.FormatInt(value, 10))
	case float64:
		*id = StudentID(strconv.FormatFloat(value, 'f', -1, 64))
	default:
		return fmt.Errorf("unsupported student_id type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (id StudentID) Value() (driver.Value, error) {
	return string(id), nil
}

// SubmissionRecord is one row of the student submissions collection. It is
// read-only: nothing in the dashboard writes it back.
type SubmissionRecord struct {
	StudentID  StudentID `gorm:"column:student_id" json:"student_id"`
	CreatedAt  string    `gorm:"column:created_at" json:"created_at"`
	Model      *string   `gorm:"column:model" json:"model,omitempty"`
	Answer1    *string   `gorm:"column:answer_1" json:"answer_1,omitempty"`
	Guideline1 *string   `gorm:"column:guideline_1" json:"guideline_1,omitempty"`
	Feedback1  *string   `gorm:"column:feedback_1" json:"feedback_1,omitempty"`
	Answer2    *string   `gorm:"column:answer_2" json:"answer_2,omitempty"`
	Guideline2 *string   `gorm:"column:guideline_2" json:"guideline_2,omitempty"`
	Feedback2  *string   `gorm:"column:feedback_2" json:"feedback_2,omitempty"`
	Answer3    *string   `gorm:"column:answer_3" json:"answer_3,omitempty"`
	Guideline3 *string   `gorm:"column:guideline_3" json:"guideline_3,omitempty"`
	Feedback3  *string   `gorm:"column:feedback_3" json:"feedback_3,omitempty"`
}

// QuestionEntry groups the optional fields recorded for a single question.
// A nil pointer means the column was absent or null.
type QuestionEntry struct {
	Index     int
	Answer    *string
	Guideline *string
	Feedback  *string
}

// HasFeedback reports whether feedback was recorded for the question.
func (q QuestionEntry) HasFeedback() bool {
	return q.Feedback != nil
}

// IsPositive reports whether the feedback starts with the positive marker.
// Missing feedback is never positive.
func (q QuestionEntry) IsPositive() bool {
	return q.Feedback != nil && IsPositiveFeedback(*q.Feedback)
}

// IsPositiveFeedback is the lexical correctness check used across the dashboard.
func IsPositiveFeedback(feedback string) bool {
	return strings.HasPrefix(feedback, PositiveFeedbackPrefix)
}

// Questions returns the per-question view of the record in question order.
func (r SubmissionRecord) Questions() [QuestionCount]QuestionEntry {
	return [QuestionCount]QuestionEntry{
		{Index: 1, Answer: r.Answer1, Guideline: r.Guideline1, Feedback: r.Feedback1},
		{Index: 2, Answer: r.Answer2, Guideline: r.Guideline2, Feedback: r.Feedback2},
		{Index: 3, Answer: r.Answer3, Guideline: r.Guideline3, Feedback: r.Feedback3},
	}
}

// ModelName returns the feedback model or an empty string.
func (r SubmissionRecord) ModelName() string {
	if r.Model == nil {
		return ""
	}
	return *r.Model
}
