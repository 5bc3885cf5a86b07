package grading

import (
	"strings"

	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

const (
	ReasonExactMatch       = "exact_match"
	ReasonRowCount         = "row_count"
	ReasonRowCountMismatch = "row_count_mismatch"
	ReasonNoRows           = "no_rows"
	ReasonNoExpectation    = "no_expectation"
)

type Verdict struct {
	Correct bool   `json:"correct"`
	Reason  string `json:"reason"`
}

// Normalize trims query, drops trailing semicolons, collapses whitespace
// runs to one space and upper-cases the result.
func Normalize(query string) string {
	trimmed := strings.TrimSpace(query)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return strings.ToUpper(strings.Join(strings.Fields(trimmed), " "))
}

// Grade decides whether query solves lesson. A normalized match with the
// reference solution passes regardless of result. Otherwise the lesson must
// declare an expected row count and result must carry exactly that many rows.
// A nil result means the query failed. Lessons without a row count never pass
// on anything but the exact match.
func Grade(lesson lessons.Lesson, query string, result *sqlrun.Result) Verdict {
	if Normalize(query) == Normalize(lesson.Solution) {
		return Verdict{Correct: true, Reason: ReasonExactMatch}
	}

	if lesson.ExpectedRowCount == nil {
		return Verdict{Reason: ReasonNoExpectation}
	}
	if result == nil || len(result.Rows) == 0 {
		return Verdict{Reason: ReasonNoRows}
	}
	if len(result.Rows) != *lesson.ExpectedRowCount {
		return Verdict{Reason: ReasonRowCountMismatch}
	}
	return Verdict{Correct: true, Reason: ReasonRowCount}
}

func Evaluate(lesson lessons.Lesson, query string, result *sqlrun.Result) bool {
	return Grade(lesson, query, result).Correct
}
