package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

const (
	msgQueryRequired  = "Query is required and must be a string"
	msgSchemaRequired = "Schema is required and must be a string"
	msgEmptyQuery     = "Query cannot be empty"
	msgMultiStatement = "Multiple SQL statements are not allowed"
	msgInvalidRequest = "Invalid request"
)

func (a *API) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var execErr *sqlrun.ExecError
	switch {
	case errors.Is(err, errSchemaRequired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgSchemaRequired})
	case errors.Is(err, sqlrun.ErrEmptyQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgEmptyQuery})
	case errors.Is(err, sqlrun.ErrMultiStatement):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMultiStatement})
	case errors.Is(err, lessons.ErrLessonNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "lesson not found"})
	case errors.Is(err, lessons.ErrCategoryNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "category not found"})
	case errors.As(err, &execErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: execErr.Error()})
	default:
		a.logger.Warn("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: unexpectedMessage(err)})
	}
}

// writeDecodeError reports a body that could not be read as JSON.
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}
	if errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request body is empty"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: unexpectedMessage(err)})
}

func unexpectedMessage(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return msgInvalidRequest
	}
	if message := strings.TrimSpace(err.Error()); message != "" {
		return message
	}
	return msgInvalidRequest
}

// stringField returns v when it is a non-empty string.
func stringField(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func (a *API) lessonFromPath(r *http.Request) (lessons.Lesson, error) {
	lessonID := strings.TrimSpace(r.PathValue("lesson_id"))
	lesson, ok := a.catalog.LessonByID(lessonID)
	if !ok {
		return lessons.Lesson{}, lessons.ErrLessonNotFound
	}
	return lesson, nil
}

func (a *API) toCategoryResponse(category lessons.Category) categoryResponse {
	return categoryResponse{
		Category:    category,
		LessonCount: len(a.catalog.LessonsByCategory(category.ID)),
	}
}

func toLessonSummaries(items []lessons.Lesson) []lessonSummary {
	out := make([]lessonSummary, 0, len(items))
	for _, lesson := range items {
		out = append(out, toLessonSummary(lesson))
	}
	return out
}

func toLessonSummary(lesson lessons.Lesson) lessonSummary {
	return lessonSummary{
		ID:          lesson.ID,
		Title:       lesson.Title,
		Category:    lesson.Category,
		Difficulty:  lesson.Difficulty,
		Description: lesson.Description,
	}
}

func (a *API) toLessonResponse(lesson lessons.Lesson) lessonResponse {
	response := lessonResponse{
		lessonSummary:    toLessonSummary(lesson),
		Hint:             lesson.Hint,
		Task:             lesson.Task,
		ExpectedColumns:  lesson.ExpectedColumns,
		ExpectedRowCount: lesson.ExpectedRowCount,
		ExpectedOutput:   lesson.ExpectedOutput,
		Explanation:      lesson.Explanation,
		Schema:           lesson.Schema,
	}
	if next, ok := a.catalog.Next(lesson.ID); ok {
		response.NextLessonID = next.ID
	}
	return response
}

func writeMethodNotAllowed(w http.ResponseWriter, allowedMethod string) {
	w.Header().Set("Allow", allowedMethod)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
