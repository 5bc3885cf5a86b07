package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sqlquest/internal/grading"
	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (a *API) HandleRunSQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if a.runner == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query runner unavailable"})
		return
	}

	defer r.Body.Close()

	var request runRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeDecodeError(w, err)
		return
	}

	query, ok := stringField(request.Query)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgQueryRequired})
		return
	}

	schema, err := a.resolveSchema(request)
	if err != nil {
		a.writeRunError(w, r, err)
		return
	}

	result, err := a.runner.Run(r.Context(), query, schema)
	if err != nil {
		a.writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

var errSchemaRequired = errors.New("schema required")

// resolveSchema prefers an explicit schema and falls back to the schema of
// the lesson named by lessonId.
func (a *API) resolveSchema(request runRequest) (string, error) {
	if schema, ok := stringField(request.Schema); ok {
		return schema, nil
	}
	if _, isString := request.Schema.(string); request.Schema != nil && !isString {
		return "", errSchemaRequired
	}

	lessonID, ok := stringField(request.LessonID)
	if !ok || a.catalog == nil {
		return "", errSchemaRequired
	}
	lesson, found := a.catalog.LessonByID(strings.TrimSpace(lessonID))
	if !found {
		return "", lessons.ErrLessonNotFound
	}
	return lesson.Schema, nil
}

func (a *API) HandleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if a.runner == nil || a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query runner unavailable"})
		return
	}

	lesson, err := a.lessonFromPath(r)
	if err != nil {
		a.writeRunError(w, r, err)
		return
	}

	defer r.Body.Close()

	var request checkRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeDecodeError(w, err)
		return
	}
	query, ok := stringField(request.Query)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgQueryRequired})
		return
	}

	result, err := a.runner.Run(r.Context(), query, lesson.Schema)
	if err != nil {
		var execErr *sqlrun.ExecError
		if !errors.As(err, &execErr) {
			a.writeRunError(w, r, err)
			return
		}
		response := newVerdictResponse(lesson.ID, grading.Grade(lesson, query, nil), nil)
		response.Error = execErr.Error()
		writeJSON(w, http.StatusOK, response)
		return
	}

	writeJSON(w, http.StatusOK, newVerdictResponse(lesson.ID, grading.Grade(lesson, query, &result), &result))
}

func (a *API) HandleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lesson catalog unavailable"})
		return
	}

	categories := a.catalog.Categories()
	response := categoriesResponse{
		Categories: make([]categoryResponse, 0, len(categories)),
	}
	for _, category := range categories {
		response.Categories = append(response.Categories, a.toCategoryResponse(category))
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) HandleCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lesson catalog unavailable"})
		return
	}

	category, ok := a.catalog.CategoryByID(strings.TrimSpace(r.PathValue("category_id")))
	if !ok {
		a.writeRunError(w, r, lessons.ErrCategoryNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a.toCategoryResponse(category))
}

func (a *API) HandleCategoryLessons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lesson catalog unavailable"})
		return
	}

	category, ok := a.catalog.CategoryByID(strings.TrimSpace(r.PathValue("category_id")))
	if !ok {
		a.writeRunError(w, r, lessons.ErrCategoryNotFound)
		return
	}
	writeJSON(w, http.StatusOK, categoryLessonsResponse{
		Category: a.toCategoryResponse(category),
		Lessons:  toLessonSummaries(a.catalog.LessonsByCategory(category.ID)),
	})
}

func (a *API) HandleLessons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lesson catalog unavailable"})
		return
	}

	categoryID := strings.TrimSpace(r.URL.Query().Get("category"))
	if categoryID == "" {
		writeJSON(w, http.StatusOK, lessonsResponse{Lessons: toLessonSummaries(a.catalog.Lessons())})
		return
	}
	if _, ok := a.catalog.CategoryByID(categoryID); !ok {
		a.writeRunError(w, r, lessons.ErrCategoryNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lessonsResponse{Lessons: toLessonSummaries(a.catalog.LessonsByCategory(categoryID))})
}

func (a *API) HandleLesson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lesson catalog unavailable"})
		return
	}

	lesson, err := a.lessonFromPath(r)
	if err != nil {
		a.writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toLessonResponse(lesson))
}

func (a *API) HandleLessonTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.runner == nil || a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query runner unavailable"})
		return
	}

	lesson, err := a.lessonFromPath(r)
	if err != nil {
		a.writeRunError(w, r, err)
		return
	}

	tables, err := a.runner.DescribeSchema(r.Context(), lesson.Schema)
	if err != nil {
		a.writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tablesResponse{LessonID: lesson.ID, Tables: tables})
}
