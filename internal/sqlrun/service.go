package sqlrun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sqlquest/internal/sqlrow"
)

// MaxRows caps the rows returned on the read path.
const MaxRows = 100

const DefaultQueryTimeout = 5 * time.Second

// Result is the success payload of a run. Read statements fill Rows; write
// statements leave Rows empty and report the affected count in Message.
type Result struct {
	Rows    []Row  `json:"rows"`
	Message string `json:"message,omitempty"`
}

func (r Result) IsWrite() bool {
	return r.Message != ""
}

type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

type ColumnInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	PK      bool   `json:"pk"`
	NotNull bool   `json:"notNull"`
}

// Service runs learner queries, each against its own throwaway store.
type Service struct {
	driver  string
	timeout time.Duration
	logger  *zap.Logger
}

type Option func(*Service)

// WithDriver picks the database/sql driver name. Blank keeps the default.
func WithDriver(driver string) Option {
	return func(s *Service) {
		if strings.TrimSpace(driver) != "" {
			s.driver = driver
		}
	}
}

// WithTimeout bounds schema load plus execution. Non-positive disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// WithLogger sets the logger for store lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService returns a Service on DefaultDriver with DefaultQueryTimeout and
// a no-op logger, then applies opts.
func NewService(opts ...Option) *Service {
	service := &Service{
		driver:  DefaultDriver,
		timeout: DefaultQueryTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Driver is the driver name stores are opened with.
func (s *Service) Driver() string {
	return s.driver
}

// Run validates query, loads schema into a fresh store and executes query
// against it. The store is released on every return path.
func (s *Service) Run(ctx context.Context, query, schema string) (Result, error) {
	if err := ValidateQuery(query); err != nil {
		return Result{}, err
	}

	var result Result
	err := s.withStore(ctx, schema, func(ctx context.Context, store *Store) error {
		// The drivers would run every statement and report only the last.
		trimmed, rest := splitTrailing(strings.TrimSpace(query))
		if rest != "" {
			return &ExecError{Kind: KindExecution, Err: errTrailingStatement}
		}
		if isReadQuery(trimmed) {
			rows, err := queryRows(ctx, store, trimmed)
			if err != nil {
				return err
			}
			result = Result{Rows: rows}
			return nil
		}

		affected, err := execStatement(ctx, store, trimmed)
		if err != nil {
			return err
		}
		result = Result{
			Rows:    []Row{},
			Message: fmt.Sprintf("Query executed successfully. %d row(s) affected.", affected),
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// DescribeSchema lists the user tables schema creates, in creation order.
func (s *Service) DescribeSchema(ctx context.Context, schema string) ([]TableInfo, error) {
	var tables []TableInfo
	err := s.withStore(ctx, schema, func(ctx context.Context, store *Store) error {
		var err error
		tables, err = describeTables(ctx, store)
		if err != nil {
			return &ExecError{Kind: KindExecution, Err: err}
		}
		return nil
	})
	return tables, err
}

func (s *Service) withStore(ctx context.Context, schema string, fn func(context.Context, *Store) error) (err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	store, err := OpenStore(ctx, s.driver)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger := s.logger.With(zap.String("store_id", store.ID()), zap.String("driver", s.driver))
	logger.Debug("store opened")

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("store release failed", zap.Error(closeErr))
		}
		logger.Debug("store released", zap.Bool("failed", err != nil))
	}()

	if loadErr := store.LoadSchema(ctx, schema); loadErr != nil {
		return s.classify(ctx, KindSchemaLoad, loadErr)
	}

	if fnErr := fn(ctx, store); fnErr != nil {
		var execErr *ExecError
		if errors.As(fnErr, &execErr) {
			return fnErr
		}
		return s.classify(ctx, KindExecution, fnErr)
	}
	return nil
}

func (s *Service) classify(ctx context.Context, kind Kind, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ExecError{
			Kind: KindTimeout,
			Err:  fmt.Errorf("query exceeded the %s time limit", s.timeout),
		}
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	}
	return &ExecError{Kind: kind, Err: err}
}

func queryRows(ctx context.Context, store *Store, query string) ([]Row, error) {
	rows, err := store.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rows.Next() {
		// Keep draining past the cap so late row errors still surface.
		if len(out) >= MaxRows {
			continue
		}

		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for idx := range values {
			pointers[idx] = &values[idx]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		for idx := range values {
			values[idx] = sqlrow.NormalizeValue(values[idx])
		}
		out = append(out, NewRow(columns, values))
	}

	return out, rows.Err()
}

func execStatement(ctx context.Context, store *Store, query string) (int64, error) {
	res, err := store.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func describeTables(ctx context.Context, store *Store) ([]TableInfo, error) {
	rows, err := store.conn.QueryContext(
		ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY rowid`,
	)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		columns, err := describeColumns(ctx, store, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, TableInfo{Name: name, Columns: columns})
	}
	return tables, nil
}

func describeColumns(ctx context.Context, store *Store, table string) ([]ColumnInfo, error) {
	rows, err := store.conn.QueryContext(ctx, `PRAGMA table_info(`+quoteIdent(table)+`)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var (
			cid          int
			name         string
			declaredType string
			notNull      int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &declaredType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, ColumnInfo{
			Name:    name,
			Type:    declaredType,
			PK:      pk > 0,
			NotNull: notNull != 0,
		})
	}
	return columns, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
