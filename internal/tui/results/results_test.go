package results

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/minaops/internal/database"
	"github.com/joacominatel/minaops/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *database.QueryResult {
	cols := []string{"id", "name", "note"}
	return &database.QueryResult{
		StatusMessage: "SELECT 2",
		RowCount:      2,
		QueryResult: database.Rows{
			Columns:      cols,
			HasResultSet: true,
			Items: []database.Row{
				{Columns: cols, Values: []any{int64(1), "alpha", nil}},
				{Columns: cols, Values: []any{int64(2), "beta", map[string]any{"k": "v"}}},
			},
		},
	}
}

func TestFromQueryResult(t *testing.T) {
	tbl := FromQueryResult(sampleResult())
	assert.Equal(t, "SELECT 2", tbl.Title)
	assert.Equal(t, []string{"id", "name", "note"}, tbl.Columns)
	assert.Equal(t, [][]string{{"1", "alpha", "null"}, {"2", "beta", `{"k":"v"}`}}, tbl.Rows)

	none := FromQueryResult(&database.QueryResult{StatusMessage: "UPDATE 0"})
	assert.Empty(t, none.Columns)
	assert.Equal(t, "Results", FromQueryResult(nil).Title)
}

func TestFromFacts(t *testing.T) {
	tbl := FromFacts(volume.Facts{
		{ID: 7, Name: "vol-a", Size: 10, Location: "fsn1", Status: "available", Labels: map[string]string{"b": "2", "a": "1"}},
	})
	assert.Equal(t, "1 volume(s)", tbl.Title)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"7", "vol-a", "10", "fsn1", "", "available", "a=1,b=2"}, tbl.Rows[0])
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "12.50", FormatValue(json.Number("12.50")))
	assert.Equal(t, "[1,2]", FormatValue([]any{1, 2}))
	assert.Equal(t, "42", FormatValue(int32(42)))
}

func TestRender(t *testing.T) {
	out := Render(FromQueryResult(sampleResult()))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "SELECT 2")
	assert.Contains(t, lines[1], "id │ name  │ note")
	assert.Contains(t, lines[2], "───┼─")
	assert.Contains(t, lines[3], "1  │ alpha │ null")

	empty := Render(Table{Title: "SELECT 0", Columns: []string{"a"}})
	assert.Contains(t, empty, "(no rows)")

	noSet := Render(Table{Title: "UPDATE 0"})
	assert.Contains(t, noSet, "no result set")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "…", truncate("abcdef", 1))

	long := Table{Columns: []string{"c"}, Rows: [][]string{{strings.Repeat("x", 100)}}}
	assert.Equal(t, []int{40}, long.ColumnWidths())
}

func TestTableJSON(t *testing.T) {
	tbl := FromQueryResult(sampleResult())
	out := TableJSON(tbl)
	assert.True(t, strings.HasPrefix(out, "[\n  {\"id\": \"1\", \"name\": \"alpha\", \"note\": null}"))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 2)
	assert.Equal(t, "[]", TableJSON(Table{Columns: []string{"a"}}))
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_CopyActions(t *testing.T) {
	var copied []string
	m := New(FromQueryResult(sampleResult()))
	m.writeClip = func(s string) error {
		copied = append(copied, s)
		return nil
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m, _ = m.Update(keyRunes("y"))
	assert.Equal(t, "alpha", copied[len(copied)-1])
	assert.Equal(t, "Copied: alpha", m.StatusMessage())
	assert.Contains(t, m.View(), "column: name")

	m, _ = m.Update(keyRunes("Y"))
	assert.Equal(t, `{"id": "1", "name": "alpha", "note": null}`, copied[len(copied)-1])

	m, _ = m.Update(keyRunes("C"))
	assert.Equal(t, "id,name,note\n1,alpha,null\n", copied[len(copied)-1])

	m, _ = m.Update(keyRunes("T"))
	assert.Equal(t, "1\talpha\tnull", copied[len(copied)-1])

	m.writeClip = func(string) error { return errors.New("no clipboard") }
	m, _ = m.Update(keyRunes("y"))
	assert.Equal(t, "Copy failed: no clipboard", m.StatusMessage())
}

func TestModel_NothingToCopy(t *testing.T) {
	m := New(Table{Title: "SELECT 0", Columns: []string{"a"}})
	m.writeClip = func(string) error { return nil }
	m, _ = m.Update(keyRunes("y"))
	assert.Equal(t, "Nothing to copy", m.StatusMessage())
	m, _ = m.Update(keyRunes("Y"))
	assert.Equal(t, "No row to copy", m.StatusMessage())
}

func TestModel_Export(t *testing.T) {
	dir := t.TempDir()
	m := New(FromQueryResult(sampleResult()))
	m.SetExportDir(dir)

	_, cmd := m.Update(keyRunes("E"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(StatusNotifyMsg)
	require.True(t, ok)
	assert.Contains(t, msg.Message, "Exported 2 rows to "+dir)

	m, _ = m.Update(msg)
	assert.Equal(t, msg.Message, m.StatusMessage())

	_, cmd = m.Update(keyRunes("X"))
	require.NotNil(t, cmd)
	_ = cmd()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
