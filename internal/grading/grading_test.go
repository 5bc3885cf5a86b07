package grading

import (
	"testing"

	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

func intPtr(v int) *int {
	return &v
}

func resultWithRows(n int) *sqlrun.Result {
	rows := make([]sqlrun.Row, 0, n)
	for idx := 0; idx < n; idx++ {
		rows = append(rows, sqlrun.NewRow([]string{"id"}, []any{int64(idx + 1)}))
	}
	return &sqlrun.Result{Rows: rows}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "select * from users", want: "SELECT * FROM USERS"},
		{in: "  SELECT *\n\tFROM   users ;; ", want: "SELECT * FROM USERS"},
		{in: "SELECT 1;", want: "SELECT 1"},
		{in: "SELECT 1; ;", want: "SELECT 1"},
		{in: "   ", want: ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGrade(t *testing.T) {
	counted := lessons.Lesson{
		ID:               "where-basic",
		Solution:         "SELECT * FROM users WHERE country = 'USA'",
		ExpectedRowCount: intPtr(3),
	}
	uncounted := lessons.Lesson{
		ID:       "free-form",
		Solution: "SELECT name FROM users",
	}

	tests := []struct {
		name   string
		lesson lessons.Lesson
		query  string
		result *sqlrun.Result
		want   Verdict
	}{
		{
			name:   "exact match ignores case and spacing",
			lesson: counted,
			query:  "select *  from users\nwhere country = 'USA';",
			result: resultWithRows(3),
			want:   Verdict{Correct: true, Reason: ReasonExactMatch},
		},
		{
			name:   "exact match without result",
			lesson: counted,
			query:  counted.Solution,
			result: nil,
			want:   Verdict{Correct: true, Reason: ReasonExactMatch},
		},
		{
			name:   "different query same cardinality",
			lesson: counted,
			query:  "SELECT name FROM users WHERE id IN (1, 4, 6)",
			result: resultWithRows(3),
			want:   Verdict{Correct: true, Reason: ReasonRowCount},
		},
		{
			name:   "wrong cardinality",
			lesson: counted,
			query:  "SELECT * FROM users",
			result: resultWithRows(10),
			want:   Verdict{Reason: ReasonRowCountMismatch},
		},
		{
			name:   "empty rows",
			lesson: counted,
			query:  "SELECT * FROM users WHERE 0",
			result: resultWithRows(0),
			want:   Verdict{Reason: ReasonNoRows},
		},
		{
			name:   "failed query",
			lesson: counted,
			query:  "SELEKT * FROM users",
			result: nil,
			want:   Verdict{Reason: ReasonNoRows},
		},
		{
			name:   "write result has no rows",
			lesson: counted,
			query:  "DELETE FROM users",
			result: &sqlrun.Result{Rows: []sqlrun.Row{}, Message: "Query executed successfully. 10 row(s) affected."},
			want:   Verdict{Reason: ReasonNoRows},
		},
		{
			name:   "no expectation never defaults to correct",
			lesson: uncounted,
			query:  "SELECT email FROM users",
			result: resultWithRows(10),
			want:   Verdict{Reason: ReasonNoExpectation},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(tc.lesson, tc.query, tc.result)
			if got != tc.want {
				t.Fatalf("Grade() = %+v, want %+v", got, tc.want)
			}
			if Evaluate(tc.lesson, tc.query, tc.result) != tc.want.Correct {
				t.Fatalf("Evaluate() disagrees with Grade()")
			}
		})
	}
}
