package httpapi

import (
	"sqlquest/internal/grading"
	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

// Request fields are decoded loosely so a wrong-typed field is reported as
// a bad request instead of a malformed body.
type runRequest struct {
	Query    any `json:"query"`
	Schema   any `json:"schema"`
	LessonID any `json:"lessonId"`
}

type checkRequest struct {
	Query any `json:"query"`
}

type checkResponse struct {
	LessonID string         `json:"lessonId"`
	Correct  bool           `json:"correct"`
	Reason   string         `json:"reason"`
	Result   *sqlrun.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type categoryResponse struct {
	lessons.Category
	LessonCount int `json:"lessonCount"`
}

type categoriesResponse struct {
	Categories []categoryResponse `json:"categories"`
}

type categoryLessonsResponse struct {
	Category categoryResponse `json:"category"`
	Lessons  []lessonSummary  `json:"lessons"`
}

type lessonsResponse struct {
	Lessons []lessonSummary `json:"lessons"`
}

type lessonSummary struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Category    string             `json:"category"`
	Difficulty  lessons.Difficulty `json:"difficulty"`
	Description string             `json:"description"`
}

// lessonResponse is the learner view of a lesson. The reference solution
// stays on the server.
type lessonResponse struct {
	lessonSummary
	Hint             string       `json:"hint"`
	Task             string       `json:"task"`
	ExpectedColumns  []string     `json:"expectedColumns,omitempty"`
	ExpectedRowCount *int         `json:"expectedRowCount,omitempty"`
	ExpectedOutput   []sqlrun.Row `json:"expectedOutput,omitempty"`
	Explanation      string       `json:"explanation,omitempty"`
	Schema           string       `json:"schema"`
	NextLessonID     string       `json:"nextLessonId,omitempty"`
}

type tablesResponse struct {
	LessonID string             `json:"lessonId"`
	Tables   []sqlrun.TableInfo `json:"tables"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newVerdictResponse(lessonID string, verdict grading.Verdict, result *sqlrun.Result) checkResponse {
	return checkResponse{
		LessonID: lessonID,
		Correct:  verdict.Correct,
		Reason:   verdict.Reason,
		Result:   result,
	}
}
