package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"nothing", Params{}},
		{"blank query", Params{Query: "   "}},
		{"query and script", Params{Query: "SELECT 1", PathToScript: "x.sql"}},
		{"both arg modes", Params{
			Query:          "SELECT %s",
			PositionalArgs: []any{1},
			NamedArgs:      map[string]any{"a": 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(tt.p)
			assert.Nil(t, req)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestNewRequest_Variants(t *testing.T) {
	req, err := NewRequest(Params{Query: "SELECT %s", PositionalArgs: []any{1}})
	require.NoError(t, err)
	assert.Equal(t, SourceInline, req.Source.Kind())
	assert.Equal(t, ArgsPositional, req.Args.Kind())

	req, err = NewRequest(Params{PathToScript: "/tmp/x.sql", NamedArgs: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, SourceScript, req.Source.Kind())
	assert.Equal(t, "/tmp/x.sql", req.Source.Path())
	assert.Equal(t, ArgsNamed, req.Args.Kind())

	req, err = NewRequest(Params{Query: "SELECT 1", SessionRole: "app", Check: true})
	require.NoError(t, err)
	assert.Equal(t, ArgsNone, req.Args.Kind())
	assert.Equal(t, "app", req.SessionRole)
	assert.True(t, req.Check)
}

func TestRequest_PrepareInline(t *testing.T) {
	req, err := NewRequest(Params{
		Query:          "INSERT INTO test_table (id, story) VALUES (%s, %s)",
		PositionalArgs: []any{4, "fourth"},
	})
	require.NoError(t, err)

	batch, err := req.Prepare()
	require.NoError(t, err)
	require.Len(t, batch.Statements, 1)
	assert.Equal(t, "INSERT INTO test_table (id, story) VALUES ($1, $2)", batch.Statements[0].SQL)
	assert.Equal(t, "INSERT INTO test_table (id, story) VALUES (4, 'fourth')", batch.Text())
}

func TestRequest_PrepareScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sql")
	script := "INSERT INTO test_table (id, story) VALUES (%s, %s);\nSELECT story FROM test_table WHERE id = %s;\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	req, err := NewRequest(Params{PathToScript: path, PositionalArgs: []any{5, "fifth", 5}})
	require.NoError(t, err)

	batch, err := req.Prepare()
	require.NoError(t, err)
	require.Len(t, batch.Statements, 2)
	assert.Equal(t, []any{5, "fifth"}, batch.Statements[0].Args)
	assert.Equal(t, "SELECT story FROM test_table WHERE id = $1", batch.Statements[1].SQL)
	assert.Equal(t, []any{5}, batch.Statements[1].Args)
}

func TestRequest_PrepareMissingScript(t *testing.T) {
	req, err := NewRequest(Params{PathToScript: filepath.Join(t.TempDir(), "missing.sql")})
	require.NoError(t, err)

	_, err = req.Prepare()
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestRequest_PrepareEmptyScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sql")
	require.NoError(t, os.WriteFile(path, []byte("-- nothing\n"), 0o600))

	req, err := NewRequest(Params{PathToScript: path})
	require.NoError(t, err)

	_, err = req.Prepare()
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestRequest_PrepareLeftoverArgs(t *testing.T) {
	req, err := NewRequest(Params{Query: "SELECT %s", PositionalArgs: []any{1, 2}})
	require.NoError(t, err)

	_, err = req.Prepare()
	assert.ErrorIs(t, err, ErrInvalidParams)
}
