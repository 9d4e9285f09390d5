package results

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/minaops/internal/database"
	"github.com/joacominatel/minaops/internal/tui/theme"
	"github.com/joacominatel/minaops/internal/volume"
)

const maxColWidth = 40

// Table is a rendered view of a result: column names and string cells.
// Cells holding SQL NULL are "null".
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// FromQueryResult builds a table from a query result. A statement without
// a result set yields a table with no columns.
func FromQueryResult(r *database.QueryResult) Table {
	t := Table{Title: "Results"}
	if r == nil {
		return t
	}
	t.Title = r.StatusMessage
	t.Columns = append([]string(nil), r.QueryResult.Columns...)
	for _, row := range r.QueryResult.Items {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			cells[i] = FormatValue(v)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// FromFacts builds a table with one row per volume.
func FromFacts(f volume.Facts) Table {
	t := Table{
		Title:   fmt.Sprintf("%d volume(s)", len(f)),
		Columns: []string{"id", "name", "size", "location", "server", "status", "labels"},
	}
	for _, v := range f {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(v.ID, 10),
			v.Name,
			strconv.Itoa(v.Size),
			v.Location,
			v.Server,
			v.Status,
			formatLabels(v.Labels),
		})
	}
	return t
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, ",")
}

// FormatValue renders one normalized column value as a cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ColumnWidths measures display widths, capped at 40 cells.
func (t Table) ColumnWidths() []int {
	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = lipgloss.Width(col)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	for i := range widths {
		widths[i] = min(max(widths[i], 1), maxColWidth)
	}
	return widths
}

// Render draws the table for non-interactive output.
func Render(t Table) string {
	var b strings.Builder
	b.WriteString(theme.StyleTitle.Render(t.Title))
	b.WriteString("\n")

	if len(t.Columns) == 0 {
		b.WriteString(theme.StyleSuccess.Render("  Statement executed, no result set"))
		return b.String()
	}

	widths := t.ColumnWidths()
	b.WriteString(renderRow(t.Columns, widths, true))
	b.WriteString("\n")
	b.WriteString(renderSeparator(widths))
	for _, row := range t.Rows {
		b.WriteString("\n")
		b.WriteString(renderRow(row, widths, false))
	}
	if len(t.Rows) == 0 {
		b.WriteString("\n")
		b.WriteString(theme.StyleMuted.Render("  (no rows)"))
	}
	return b.String()
}

// truncate shortens s to width display cells, ending in an ellipsis.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func renderRow(cells []string, widths []int, isHeader bool) string {
	parts := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		display := truncate(cell, width)
		if pad := width - lipgloss.Width(display); pad > 0 {
			display += strings.Repeat(" ", pad)
		}
		if isHeader {
			display = theme.StyleHeader.Render(display)
		}
		parts[i] = display
	}
	return "  " + strings.Join(parts, " │ ")
}

func renderSeparator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}
