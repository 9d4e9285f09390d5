package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joacominatel/minaops/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable PostgreSQL database, for example
// MINAOPS_TEST_DSN=postgresql://postgres@localhost:5432/postgres?sslmode=disable
func testDriver(t *testing.T) *Driver {
	t.Helper()
	dsn := os.Getenv("MINAOPS_TEST_DSN")
	if dsn == "" {
		t.Skip("MINAOPS_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	d := New(log)
	require.NoError(t, d.Connect(ctx, dsn))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func run(t *testing.T, d *Driver, p database.Params) (*database.QueryResult, error) {
	t.Helper()
	req, err := database.NewRequest(p)
	require.NoError(t, err)
	batch, err := req.Prepare()
	require.NoError(t, err)
	return d.Execute(context.Background(), batch)
}

func mustRun(t *testing.T, d *Driver, p database.Params) *database.QueryResult {
	t.Helper()
	res, err := run(t, d, p)
	require.NoError(t, err)
	return res
}

func setupTable(t *testing.T, d *Driver) {
	t.Helper()
	mustRun(t, d, database.Params{Query: "DROP TABLE IF EXISTS test_table"})
	mustRun(t, d, database.Params{Query: "CREATE TABLE test_table (id int, story text)"})
	mustRun(t, d, database.Params{Query: "INSERT INTO test_table (id, story) VALUES (1, 'first'), (2, 'second'), (3, 'third')"})
	t.Cleanup(func() {
		_, _ = run(t, d, database.Params{Query: "DROP TABLE IF EXISTS test_table"})
	})
}

func TestDriver_SelectAll(t *testing.T) {
	d := testDriver(t)
	setupTable(t, d)

	res := mustRun(t, d, database.Params{Query: "SELECT * FROM test_table ORDER BY id"})
	assert.False(t, res.Changed)
	assert.EqualValues(t, 3, res.RowCount)
	assert.Contains(t, []string{"SELECT 3", "SELECT"}, res.StatusMessage)
	require.Equal(t, 3, res.QueryResult.Len())
	for _, row := range res.QueryResult.Items {
		assert.Equal(t, []string{"id", "story"}, row.Columns)
	}
	story, _ := res.QueryResult.Items[1].Get("story")
	assert.Equal(t, "second", story)
}

func TestDriver_NamedArgs(t *testing.T) {
	d := testDriver(t)
	setupTable(t, d)

	res := mustRun(t, d, database.Params{
		Query:     "SELECT * FROM test_table WHERE id = %(id_val)s AND story = %(story_val)s",
		NamedArgs: map[string]any{"id_val": 1, "story_val": "first"},
	})
	assert.Equal(t, "SELECT * FROM test_table WHERE id = 1 AND story = 'first'", res.Query)
	assert.EqualValues(t, 1, res.RowCount)
	assert.Equal(t, 1, res.QueryResult.Len())
}

func TestDriver_UpdateNoMatch(t *testing.T) {
	d := testDriver(t)
	setupTable(t, d)

	res := mustRun(t, d, database.Params{Query: "UPDATE test_table SET story = 'new' WHERE id = 100"})
	assert.False(t, res.Changed)
	assert.EqualValues(t, 0, res.RowCount)
	assert.Equal(t, "UPDATE 0", res.StatusMessage)
	assert.False(t, res.QueryResult.HasResultSet)
}

func TestDriver_InsertPositional(t *testing.T) {
	d := testDriver(t)
	setupTable(t, d)

	res := mustRun(t, d, database.Params{
		Query:          "INSERT INTO test_table (id, story) VALUES (%s, %s)",
		PositionalArgs: []any{4, "fourth"},
	})
	assert.Contains(t, res.Query, "VALUES (4, 'fourth')")
	assert.True(t, res.Changed)
	assert.EqualValues(t, 1, res.RowCount)
	assert.Equal(t, "INSERT 0 1", res.StatusMessage)
	assert.False(t, res.QueryResult.HasResultSet)
}

func TestDriver_DDLAndTruncate(t *testing.T) {
	d := testDriver(t)
	setupTable(t, d)

	res := mustRun(t, d, database.Params{Query: "ALTER TABLE test_table ADD COLUMN foo text"})
	assert.True(t, res.Changed)
	assert.Equal(t, "ALTER TABLE", res.StatusMessage)
	assert.EqualValues(t, 0, res.RowCount)
	assert.False(t, res.QueryResult.HasResultSet)

	res = mustRun(t, d, database.Params{Query: "TRUNCATE test_table"})
	assert.True(t, res.Changed)
	assert.Equal(t, "TRUNCATE TABLE", res.StatusMessage)
	assert.False(t, res.QueryResult.HasResultSet)

	res = mustRun(t, d, database.Params{Query: "SELECT * FROM test_table"})
	assert.EqualValues(t, 0, res.RowCount)
	assert.True(t, res.QueryResult.HasResultSet)
	assert.Equal(t, 0, res.QueryResult.Len())
}

func TestDriver_CheckModeRollsBack(t *testing.T) {
	d := testDriver(t)
	setupTable(t, d)

	res := mustRun(t, d, database.Params{Query: "DELETE FROM test_table", Check: true})
	assert.True(t, res.Changed)
	assert.EqualValues(t, 3, res.RowCount)

	res = mustRun(t, d, database.Params{Query: "SELECT id FROM test_table"})
	assert.EqualValues(t, 3, res.RowCount)
}

func TestDriver_Script(t *testing.T) {
	d := testDriver(t)
	setupTable(t, d)

	path := filepath.Join(t.TempDir(), "script.sql")
	require.NoError(t, os.WriteFile(path, []byte(
		"INSERT INTO test_table (id, story) VALUES (%s, %s);\n"+
			"SELECT story FROM test_table WHERE id = %s;\n"), 0o600))

	res := mustRun(t, d, database.Params{PathToScript: path, PositionalArgs: []any{9, "ninth", 9}})
	assert.True(t, res.Changed)
	assert.EqualValues(t, 1, res.RowCount)
	require.Equal(t, 1, res.QueryResult.Len())
	story, _ := res.QueryResult.Items[0].Get("story")
	assert.Equal(t, "ninth", story)
}

func TestDriver_MalformedSQL(t *testing.T) {
	d := testDriver(t)

	_, err := run(t, d, database.Params{Query: "SELEC 1"})
	require.Error(t, err)
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "42601", pgErr.Code)
	assert.NotErrorIs(t, err, database.ErrUnavailable)
}

func TestDriver_NotConnected(t *testing.T) {
	d := New(nil)
	_, err := d.Execute(context.Background(), &database.Batch{Statements: []database.Statement{{SQL: "SELECT 1"}}})
	assert.ErrorIs(t, err, database.ErrUnavailable)
	assert.ErrorIs(t, d.Ping(context.Background()), database.ErrUnavailable)
}

func TestDriver_ConnectUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d := New(nil)
	err := d.Connect(ctx, "postgresql://nobody@127.0.0.1:1/none?connect_timeout=1")
	assert.ErrorIs(t, err, database.ErrUnavailable)
}
