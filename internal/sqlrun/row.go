package sqlrun

import "sqlquest/internal/sqlrow"

// Row is one result row, in statement column order.
type Row = sqlrow.Row

func NewRow(columns []string, values []any) Row {
	return sqlrow.New(columns, values)
}
