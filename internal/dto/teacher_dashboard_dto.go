package dto

import "time"

// SubmissionQuery carries the teacher's filter controls.
type SubmissionQuery struct {
	StudentID string `query:"student_id" validate:"max=64"`
	Sort      string `query:"sort" validate:"omitempty,oneof=latest student_id_asc student_id_desc"`
}

// SubmissionRowResponse is one line of the submission table.
type SubmissionRowResponse struct {
	StudentID     string     `json:"student_id"`
	CreatedAt     *time.Time `json:"created_at"`
	SubmittedAt   string     `json:"submitted_at"`
	Model         string     `json:"model,omitempty"`
	PositiveCount int        `json:"positive_count"`
}

// SubmissionListResponse lists filtered and sorted submissions.
type SubmissionListResponse struct {
	Items []SubmissionRowResponse `json:"items"`
	Count int                     `json:"count"`
}

// SummaryResponse holds the headline metrics of the current view.
type SummaryResponse struct {
	TotalCount       int      `json:"total_count"`
	DistinctStudents int      `json:"distinct_students"`
	PositiveCount    int      `json:"positive_count"`
	LatestSubmission *string  `json:"latest_submission,omitempty"`
	Accuracy         *float64 `json:"accuracy,omitempty"`
	AccuracyLabel    string   `json:"accuracy_label,omitempty"`
}

// StudentListResponse feeds the student selector.
type StudentListResponse struct {
	StudentIDs []string `json:"student_ids"`
}

// QuestionDetail shows one answered question with its rubric and feedback.
type QuestionDetail struct {
	Index     int     `json:"index"`
	Prompt    string  `json:"prompt"`
	Answer    *string `json:"answer"`
	Guideline *string `json:"guideline"`
	Feedback  *string `json:"feedback"`
	Positive  bool    `json:"positive"`
}

// StudentDetailResponse is the latest submission of a student.
type StudentDetailResponse struct {
	StudentID    string           `json:"student_id"`
	SubmittedAt  string           `json:"submitted_at"`
	Model        string           `json:"model,omitempty"`
	HistoryCount int              `json:"history_count"`
	Questions    []QuestionDetail `json:"questions"`
}

// ExportFile is a rendered export ready to be downloaded.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
	Rows        int
}

// RefreshResponse confirms a manual refresh.
type RefreshResponse struct {
	RefreshedAt time.Time `json:"refreshed_at"`
	Broadcast   bool      `json:"broadcast"`
}
