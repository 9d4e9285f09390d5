package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

func clipboardWrite(s string) error {
	return clipboard.WriteAll(s)
}

func (m Model) currentRow() ([]string, bool) {
	y := m.table.Cursor()
	if y < 0 || y >= len(m.data.Rows) {
		return nil, false
	}
	return m.data.Rows[y], true
}

func (m Model) cellValue() string {
	row, ok := m.currentRow()
	if !ok || m.cursorX < 0 || m.cursorX >= len(row) {
		return ""
	}
	return row[m.cursorX]
}

func (m Model) columnName() string {
	if m.cursorX < 0 || m.cursorX >= len(m.data.Columns) {
		return ""
	}
	return m.data.Columns[m.cursorX]
}

func (m *Model) copy(text, done string) {
	if err := m.writeClip(text); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = done
}

func (m *Model) doCopyCell() {
	val := m.cellValue()
	if val == "" {
		m.statusMessage = "Nothing to copy"
		return
	}
	m.copy(val, "Copied: "+truncateStatus(val, 40))
}

func (m *Model) doCopyRowJSON() {
	row, ok := m.currentRow()
	if !ok {
		m.statusMessage = "No row to copy"
		return
	}
	m.copy(rowToJSON(m.data.Columns, row), "Copied row as JSON")
}

func (m *Model) doCopyRowCSV() {
	row, ok := m.currentRow()
	if !ok {
		m.statusMessage = "No row to copy"
		return
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(m.data.Columns)
	_ = w.Write(row)
	w.Flush()
	m.copy(b.String(), "Copied row as CSV")
}

func (m *Model) doCopyRowText() {
	row, ok := m.currentRow()
	if !ok {
		m.statusMessage = "No row to copy"
		return
	}
	m.copy(strings.Join(row, "\t"), "Copied row as text")
}

func (m Model) exportPath(ext string) string {
	name := fmt.Sprintf("minaops_export_%s.%s", time.Now().Format("20060102_150405"), ext)
	return filepath.Join(m.exportDir, name)
}

func (m Model) exportJSONCmd() tea.Cmd {
	data := m.data
	path := m.exportPath("json")
	return func() tea.Msg {
		if err := os.WriteFile(path, []byte(TableJSON(data)), 0o644); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(data.Rows), path)}
	}
}

func (m Model) exportCSVCmd() tea.Cmd {
	data := m.data
	path := m.exportPath("csv")
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		w := csv.NewWriter(f)
		_ = w.Write(data.Columns)
		for _, row := range data.Rows {
			_ = w.Write(row)
		}
		w.Flush()

		if err := w.Error(); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(data.Rows), path)}
	}
}

// TableJSON renders the rows as a JSON array of objects in column order.
func TableJSON(t Table) string {
	var b strings.Builder
	b.WriteString("[")
	for ri, row := range t.Rows {
		if ri > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  ")
		b.WriteString(rowToJSON(t.Columns, row))
	}
	if len(t.Rows) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("]")
	return b.String()
}

// rowToJSON preserves column order unlike map marshaling
func rowToJSON(columns []string, row []string) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		k, _ := json.Marshal(col)
		b.Write(k)
		b.WriteString(": ")
		if i >= len(row) || row[i] == "null" {
			b.WriteString("null")
			continue
		}
		v, _ := json.Marshal(row[i])
		b.Write(v)
	}
	b.WriteString("}")
	return b.String()
}

func truncateStatus(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
