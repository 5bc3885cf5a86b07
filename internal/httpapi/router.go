package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sqlquest/internal/lessons"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultLogBodyBytes = 2048
)

type Options struct {
	MaxBodyBytes int64
	CORSOrigin   string
	LogBodyBytes int
}

func NewRouter(runner Runner, catalog *lessons.Catalog, logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.LogBodyBytes <= 0 {
		opts.LogBodyBytes = defaultLogBodyBytes
	}

	api := NewAPI(runner, catalog, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", api.HandleHealth)
	mux.HandleFunc("/api/sql/run", api.HandleRunSQL)
	mux.HandleFunc("/api/categories", api.HandleCategories)
	mux.HandleFunc("/api/categories/{category_id}", api.HandleCategory)
	mux.HandleFunc("/api/categories/{category_id}/lessons", api.HandleCategoryLessons)
	mux.HandleFunc("/api/lessons", api.HandleLessons)
	mux.HandleFunc("/api/lessons/{lesson_id}", api.HandleLesson)
	mux.HandleFunc("/api/lessons/{lesson_id}/tables", api.HandleLessonTables)
	mux.HandleFunc("/api/lessons/{lesson_id}/check", api.HandleCheck)

	var handler http.Handler = mux
	handler = limitBody(opts.MaxBodyBytes, handler)
	handler = withCORS(opts.CORSOrigin, handler)
	handler = withRecovery(logger, handler)
	handler = withAccessLog(logger, opts.LogBodyBytes, handler)
	handler = withRequestID(handler)
	return handler
}
