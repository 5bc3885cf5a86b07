package sqlrun

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultWireShapes(t *testing.T) {
	read, err := json.Marshal(Result{Rows: []Row{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[]}`, string(read))

	write, err := json.Marshal(Result{Rows: []Row{}, Message: "Query executed successfully. 2 row(s) affected."})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[],"message":"Query executed successfully. 2 row(s) affected."}`, string(write))
}

func TestNewRowKeepsColumnOrder(t *testing.T) {
	row := NewRow([]string{"b", "a"}, []any{int64(1)})

	assert.Equal(t, []string{"b", "a"}, row.Columns())
	value, ok := row.Get("a")
	require.True(t, ok)
	assert.Nil(t, value)
}
