package dashboard

import (
	"errors"
	"fmt"
)

// ErrStudentNotFound is returned when a table holds no rows for a student.
var ErrStudentNotFound = errors.New("student not found")

// DefaultQuestions are the prompts of the three fixed questions, by index.
var DefaultQuestions = map[int]string{
	1: "기체 입자들의 운동과 온도의 관계를 서술하세요.",
	2: "보일 법칙에 대해 설명하세요.",
	3: "열에너지 이동 3가지 방식(전도·대류·복사)을 설명하세요.",
}

// SelectLatestForStudent returns the most recent row for studentID together
// with the number of rows the student has. Rows with equal timestamps keep
// their table order.
func SelectLatestForStudent(table Table, studentID string) (Row, int, error) {
	matches := make(Table, 0)
	for _, row := range table {
		if row.StudentID() == studentID {
			matches = append(matches, row)
		}
	}

	if len(matches) == 0 {
		return Row{}, 0, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}

	sorted := Sort(matches, SortMostRecentFirst)
	return sorted[0], len(matches), nil
}
