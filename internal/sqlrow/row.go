// Package sqlrow holds the ordered result row shared by the query runner,
// the lesson catalog and the HTTP wire format.
package sqlrow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Row is one result row. It encodes as a JSON object whose keys follow the
// column order of the statement. A repeated column name keeps its first
// position and takes the last value, like an object literal would.
type Row struct {
	columns []string
	values  []any
}

// New pairs columns with values. Missing values are nil.
func New(columns []string, values []any) Row {
	row := Row{
		columns: make([]string, 0, len(columns)),
		values:  make([]any, 0, len(columns)),
	}
	for idx, column := range columns {
		var value any
		if idx < len(values) {
			value = values[idx]
		}
		row.set(column, value)
	}
	return row
}

func (r *Row) set(column string, value any) {
	for idx, existing := range r.columns {
		if existing == column {
			r.values[idx] = value
			return
		}
	}
	r.columns = append(r.columns, column)
	r.values = append(r.values, value)
}

func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func (r Row) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

func (r Row) Len() int {
	return len(r.columns)
}

func (r Row) Get(column string) (any, bool) {
	for idx, existing := range r.columns {
		if existing == column {
			return r.values[idx], true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, column := range r.columns {
		if idx > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(r.values[idx])
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", column, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps key order. Numbers decode as json.Number so integers
// survive unchanged.
func (r *Row) UnmarshalJSON(data []byte) error {
	*r = Row{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected row key %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode column %q: %w", key, err)
		}
		r.set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// UnmarshalYAML reads a mapping node in document order.
func (r *Row) UnmarshalYAML(node *yaml.Node) error {
	*r = Row{}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("row must be a mapping, line %d", node.Line)
	}
	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		key := node.Content[idx].Value

		var value any
		if err := node.Content[idx+1].Decode(&value); err != nil {
			return fmt.Errorf("decode column %q: %w", key, err)
		}
		r.set(key, value)
	}
	return nil
}

// NormalizeValue turns driver values into JSON-friendly ones.
func NormalizeValue(value any) any {
	switch v := value.(type) {
	case []byte:
		if utf8.Valid(v) {
			return string(v)
		}
		out := make([]byte, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}
