package dashboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SortMode selects the ordering applied to a table.
type SortMode string

const (
	// SortMostRecentFirst orders by created_at descending.
	SortMostRecentFirst SortMode = "latest"
	// SortStudentIDAsc orders by student id ascending.
	SortStudentIDAsc SortMode = "student_id_asc"
	// SortStudentIDDesc orders by student id descending.
	SortStudentIDDesc SortMode = "student_id_desc"
)

// ParseSortMode maps a query value onto a SortMode. Empty means most recent first.
func ParseSortMode(value string) (SortMode, error) {
	switch mode := SortMode(strings.TrimSpace(value)); mode {
	case "":
		return SortMostRecentFirst, nil
	case SortMostRecentFirst, SortStudentIDAsc, SortStudentIDDesc:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", value)
	}
}

// Filter keeps rows whose student id contains substring. Matching is case
// sensitive; surrounding whitespace of the search term is ignored and an
// empty term keeps every row.
func Filter(table Table, substring string) Table {
	term := strings.TrimSpace(substring)
	if term == "" {
		return table.clone()
	}

	out := make(Table, 0, len(table))
	for _, row := range table {
		if strings.Contains(row.StudentID(), term) {
			out = append(out, row)
		}
	}
	return out
}

// Sort returns a stably ordered copy of table.
func Sort(table Table, mode SortMode) Table {
	out := table.clone()

	switch mode {
	case SortStudentIDAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return compareStudentIDs(out[i].StudentID(), out[j].StudentID()) < 0
		})
	case SortStudentIDDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return compareStudentIDs(out[i].StudentID(), out[j].StudentID()) > 0
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}

// compareStudentIDs orders integer ids numerically ahead of all other ids,
// which compare lexically.
func compareStudentIDs(a, b string) int {
	left, leftErr := strconv.ParseInt(a, 10, 64)
	right, rightErr := strconv.ParseInt(b, 10, 64)
	switch {
	case leftErr == nil && rightErr == nil:
		switch {
		case left < right:
			return -1
		case left > right:
			return 1
		default:
			return strings.Compare(a, b)
		}
	case leftErr == nil:
		return -1
	case rightErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// DistinctStudentIDs lists each student id once in ascending order.
func DistinctStudentIDs(table Table) []string {
	seen := make(map[string]struct{}, len(table))
	ids := make([]string, 0, len(table))
	for _, row := range table {
		id := row.StudentID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	sort.SliceStable(ids, func(i, j int) bool {
		return compareStudentIDs(ids[i], ids[j]) < 0
	})
	return ids
}
