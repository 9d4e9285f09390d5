package database

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRows_MarshalJSON(t *testing.T) {
	cols := []string{"id", "story"}
	tests := []struct {
		name string
		rows Rows
		want string
	}{
		{"no result set", Rows{}, `{}`},
		{"empty result set", Rows{Columns: cols, HasResultSet: true}, `[]`},
		{"ordered rows", Rows{
			Columns:      cols,
			HasResultSet: true,
			Items: []Row{
				{Columns: cols, Values: []any{2, "second"}},
				{Columns: cols, Values: []any{1, nil}},
			},
		}, `[{"id":2,"story":"second"},{"id":1,"story":null}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.rows)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(raw))
		})
	}
}

func TestRow_KeepsColumnOrder(t *testing.T) {
	r := Row{Columns: []string{"z", "a", "m"}, Values: []any{1, 2, 3}}
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(raw))

	var back Row
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []string{"z", "a", "m"}, back.Columns)
	assert.Equal(t, json.Number("2"), back.Values[1])

	v, ok := back.Get("m")
	assert.True(t, ok)
	assert.Equal(t, json.Number("3"), v)
	_, ok = back.Get("missing")
	assert.False(t, ok)
}

func TestQueryResult_RoundTrip(t *testing.T) {
	in := QueryResult{
		Query:         "UPDATE test_table SET story = 'new' WHERE id = 100",
		StatusMessage: "UPDATE 0",
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"UPDATE test_table SET story = 'new' WHERE id = 100","rowcount":0,"statusmessage":"UPDATE 0","query_result":{},"changed":false}`, string(raw))

	var out QueryResult
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.False(t, out.QueryResult.HasResultSet)

	raw = []byte(`{"query":"SELECT 1 AS n","rowcount":1,"statusmessage":"SELECT 1","query_result":[{"n":1}],"changed":false}`)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.QueryResult.HasResultSet)
	assert.Equal(t, 1, out.QueryResult.Len())
	assert.Equal(t, []string{"n"}, out.QueryResult.Columns)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status string
		rows   int64
		want   bool
	}{
		{"UPDATE 0", 0, false},
		{"UPDATE 3", 3, true},
		{"INSERT 0 1", 1, true},
		{"DELETE 0", 0, false},
		{"SELECT 3", 3, false},
		{"SELECT", 0, false},
		{"ALTER TABLE", 0, true},
		{"TRUNCATE TABLE", 0, true},
		{"CREATE INDEX", 0, true},
		{"ANALYZE", 0, true},
		{"SHOW", 0, false},
		{"SET", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status, tt.rows), "Classify(%q, %d)", tt.status, tt.rows)
	}
}
