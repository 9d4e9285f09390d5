// Package tui implements the interactive results viewer.
package tui

import (
	"io"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/minaops/internal/tui/results"
	"github.com/joacominatel/minaops/internal/tui/statusbar"
	"github.com/joacominatel/minaops/internal/tui/theme"
)

var (
	keyQuit = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit"))
	keyHelp = key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help"))
)

// Model is the top-level bubbletea model: a results pane over a status bar.
type Model struct {
	results   results.Model
	statusbar statusbar.Model
	width     int
	height    int
	showHelp  bool
}

// NewModel creates the viewer for t.
func NewModel(t results.Table, s statusbar.Summary) Model {
	return Model{
		results:   results.New(t),
		statusbar: statusbar.New(s),
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		switch {
		case key.Matches(msg, keyHelp):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	m.statusbar.SetMessage(m.results.StatusMessage())
	return m, cmd
}

func (m *Model) layout() {
	m.statusbar.SetWidth(m.width)
	m.results.SetSize(m.width-2, m.height-3)
}

// View renders the viewer.
func (m Model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	pane := theme.StyleBorder.Width(max(m.width-2, 1)).Render(m.results.View())
	return lipgloss.JoinVertical(lipgloss.Left, pane, m.statusbar.View())
}

func (m Model) viewHelp() string {
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(12)
	descStyle := theme.StyleMuted

	k := m.results.Keys()
	lines := []string{theme.StyleTitle.Render("minaops - Keyboard Shortcuts"), ""}
	for _, b := range []key.Binding{k.Left, k.Right, k.CopyCell, k.CopyJSON, k.CopyCSV, k.CopyText, k.ExportJSON, k.ExportCSV, keyHelp, keyQuit} {
		h := b.Help()
		lines = append(lines, "  "+keyStyle.Render(h.Key)+descStyle.Render(h.Desc))
	}
	lines = append(lines, "", descStyle.Render("Press any key to close"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Run shows t until the user quits.
func Run(t results.Table, s statusbar.Summary, in io.Reader, out io.Writer) error {
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	_, err := tea.NewProgram(NewModel(t, s), opts...).Run()
	return err
}
