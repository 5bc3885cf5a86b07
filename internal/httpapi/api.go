package httpapi

import (
	"context"

	"go.uber.org/zap"

	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

// Runner executes learner queries against throwaway stores. *sqlrun.Service
// satisfies it.
type Runner interface {
	Run(ctx context.Context, query, schema string) (sqlrun.Result, error)
	DescribeSchema(ctx context.Context, schema string) ([]sqlrun.TableInfo, error)
}

type API struct {
	runner  Runner
	catalog *lessons.Catalog
	logger  *zap.Logger
}

func NewAPI(runner Runner, catalog *lessons.Catalog, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		runner:  runner,
		catalog: catalog,
		logger:  logger,
	}
}
