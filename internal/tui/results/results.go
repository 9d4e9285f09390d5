package results

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/minaops/internal/tui/theme"
)

// KeyMap holds the results viewer bindings.
type KeyMap struct {
	Left       key.Binding
	Right      key.Binding
	CopyCell   key.Binding
	CopyJSON   key.Binding
	CopyCSV    key.Binding
	CopyText   key.Binding
	ExportJSON key.Binding
	ExportCSV  key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous column")),
		Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
		CopyCell:   key.NewBinding(key.WithKeys("y", "c"), key.WithHelp("y", "copy cell")),
		CopyJSON:   key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy row as JSON")),
		CopyCSV:    key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "copy row as CSV")),
		CopyText:   key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "copy row as text")),
		ExportJSON: key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "export JSON")),
		ExportCSV:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "export CSV")),
	}
}

// Model is the interactive results component.
type Model struct {
	data          Table
	table         table.Model
	keys          KeyMap
	width         int
	height        int
	cursorX       int
	statusMessage string
	exportDir     string
	writeClip     func(string) error
}

// New creates a results model showing t.
func New(t Table) Model {
	m := Model{
		data:      t,
		keys:      DefaultKeyMap(),
		writeClip: clipboardWrite,
	}
	m.table = table.New(
		table.WithColumns(m.columns()),
		table.WithRows(m.rows()),
		table.WithFocused(true),
		table.WithStyles(theme.TableStyles()),
	)
	return m
}

func (m Model) columns() []table.Column {
	widths := m.data.ColumnWidths()
	cols := make([]table.Column, len(m.data.Columns))
	for i, c := range m.data.Columns {
		cols[i] = table.Column{Title: c, Width: widths[i]}
	}
	return cols
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, len(m.data.Rows))
	for i, r := range m.data.Rows {
		rows[i] = table.Row(r)
	}
	return rows
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.table.SetWidth(w)
	m.table.SetHeight(max(h-2, 1))
}

// SetExportDir sets where exports are written. Empty means the working
// directory.
func (m *Model) SetExportDir(dir string) {
	m.exportDir = dir
}

// StatusMessage returns the outcome of the last action.
func (m Model) StatusMessage() string {
	return m.statusMessage
}

// Keys returns the active bindings.
func (m Model) Keys() KeyMap {
	return m.keys
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StatusNotifyMsg:
		m.statusMessage = msg.Message
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Left):
			if m.cursorX > 0 {
				m.cursorX--
			}
			return m, nil
		case key.Matches(msg, m.keys.Right):
			if m.cursorX < len(m.data.Columns)-1 {
				m.cursorX++
			}
			return m, nil
		case key.Matches(msg, m.keys.CopyCell):
			m.doCopyCell()
			return m, nil
		case key.Matches(msg, m.keys.CopyJSON):
			m.doCopyRowJSON()
			return m, nil
		case key.Matches(msg, m.keys.CopyCSV):
			m.doCopyRowCSV()
			return m, nil
		case key.Matches(msg, m.keys.CopyText):
			m.doCopyRowText()
			return m, nil
		case key.Matches(msg, m.keys.ExportJSON):
			return m, m.exportJSONCmd()
		case key.Matches(msg, m.keys.ExportCSV):
			return m, m.exportCSVCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the results pane.
func (m Model) View() string {
	header := theme.StyleTitle.Render(m.data.Title)
	if len(m.data.Columns) == 0 {
		return header + "\n" + theme.StyleSuccess.Render("  Statement executed, no result set")
	}
	stats := fmt.Sprintf("%d row(s)", len(m.data.Rows))
	if col := m.columnName(); col != "" {
		stats += " | column: " + col
	}
	header += "  " + theme.StyleMuted.Render(stats)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.table.View())
}
