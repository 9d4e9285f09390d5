package statusbar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/minaops/internal/tui/theme"
)

// Summary is the outcome shown on the left of the bar.
type Summary struct {
	Status   string
	RowCount int64
	Changed  bool
}

// Model is the status bar component.
type Model struct {
	width   int
	summary Summary
	message string
	hints   string
}

// New creates a new status bar model.
func New(s Summary) Model {
	return Model{
		summary: s,
		hints:   "↑/↓: Rows │ ←/→: Columns │ y: Copy │ ?: Help │ q: Quit",
	}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetMessage sets a temporary status message that replaces the hints.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages (status bar has no interactive behavior).
func (m Model) Update(_ tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// Left renders the summary.
func (m Model) Left() string {
	dot := lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●")
	changed := theme.StyleMuted.Render("unchanged")
	if m.summary.Changed {
		dot = lipgloss.NewStyle().Foreground(theme.ColorChanged).Render("●")
		changed = theme.StyleChanged.Render("changed")
	}
	return fmt.Sprintf("%s %s │ %d row(s) │ %s", dot, m.summary.Status, m.summary.RowCount, changed)
}

// View renders the status bar.
func (m Model) View() string {
	left := m.Left()
	right := m.hints
	if m.message != "" {
		right = m.message
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if padding < 1 {
		padding = 1
	}

	return theme.StyleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}
