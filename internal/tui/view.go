package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/runctl/runctl/internal/supervisor"
	"github.com/runctl/runctl/internal/theme"
)

type styles struct {
	headerTitle lipgloss.Style
	headerPath  lipgloss.Style
	tableBox    lipgloss.Style
	feedBox     lipgloss.Style
	feedTime    lipgloss.Style
	confirm     lipgloss.Style
}

func newStyles(p theme.Palette) styles {
	return styles{
		headerTitle: lipgloss.NewStyle().
			Foreground(p.Adaptive(theme.ColorPrimaryText)).
			Background(p.Adaptive(theme.ColorPrimary)),
		headerPath: p.ForegroundStyle(theme.ColorTextMuted),
		tableBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Adaptive(theme.ColorBorder)),
		feedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Adaptive(theme.ColorBorder)),
		feedTime: p.ForegroundStyle(theme.ColorTextMuted),
		confirm: lipgloss.NewStyle().
			Foreground(p.Adaptive(theme.ColorWarning)).
			Bold(true),
	}
}

func tableStyles(p theme.Palette) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		Foreground(p.Adaptive(theme.ColorTextPrimary)).
		Background(p.Adaptive(theme.ColorSurface))
	s.Cell = s.Cell.
		Foreground(p.Adaptive(theme.ColorTextPrimary))
	s.Selected = s.Selected.
		Foreground(p.Adaptive(theme.ColorAccentText)).
		Background(p.Adaptive(theme.ColorAccent))
	return s
}

func helpStyles(p theme.Palette) help.Styles {
	keyStyle := p.ForegroundStyle(theme.ColorTextSecondary)
	descStyle := p.ForegroundStyle(theme.ColorTextMuted)
	return help.Styles{
		ShortKey:       keyStyle,
		ShortDesc:      descStyle,
		ShortSeparator: descStyle,
		Ellipsis:       descStyle,
		FullKey:        keyStyle,
		FullDesc:       descStyle,
		FullSeparator:  descStyle,
	}
}

const (
	statusColWidth = 13
	pidColWidth    = 7
	uptimeColWidth = 7

	// cellPadding is the horizontal padding the default table styles apply
	// to each side of a cell.
	cellPadding = 2
)

// programColumns sizes the table columns for the given snapshot. ID sizes
// to its content, NAME absorbs whatever width remains.
func programColumns(statuses []supervisor.ProgramStatus, width int) []table.Column {
	idWidth := runewidth.StringWidth("ID")
	nameWidth := runewidth.StringWidth("NAME")
	for _, st := range statuses {
		if w := runewidth.StringWidth(st.ID); w > idWidth {
			idWidth = w
		}
		if w := runewidth.StringWidth(st.Name); w > nameWidth {
			nameWidth = w
		}
	}

	if width > 0 {
		frame := 2
		remaining := width - frame - 5*cellPadding -
			idWidth - statusColWidth - pidColWidth - uptimeColWidth
		if remaining >= 4 {
			nameWidth = remaining
		}
	}

	return []table.Column{
		{Title: "ID", Width: idWidth},
		{Title: "NAME", Width: nameWidth},
		{Title: "STATUS", Width: statusColWidth},
		{Title: "PID", Width: pidColWidth},
		{Title: "UPTIME", Width: uptimeColWidth},
	}
}

func (m *model) applySize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height
	m.help.Width = width

	m.table.SetColumns(programColumns(m.statuses, width))
	m.table.SetWidth(width - 2)

	// header + table border + feed box + status + help
	chrome := 1 + 2 + (feedVisible + 2) + 1 + 1
	bodyHeight := height - chrome
	if want := len(m.statuses) + 1; bodyHeight > want {
		bodyHeight = want
	}
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	m.table.SetHeight(bodyHeight)
}

func (m *model) View() string {
	sections := []string{
		m.renderHeader(),
		m.styles.tableBox.Render(m.table.View()),
		m.renderFeed(),
		m.renderStatusArea(),
		m.help.View(m.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *model) renderHeader() string {
	title := m.styles.headerTitle.Render(" runctl ")
	path := m.styles.headerPath.Render(" " + m.manifestPath)
	return ansi.Truncate(title+path, m.width, "…")
}

func (m *model) renderFeed() string {
	innerWidth := m.width - 4
	if innerWidth < 10 {
		innerWidth = 10
	}

	lines := make([]string, 0, feedVisible)
	start := len(m.feed) - feedVisible
	if start < 0 {
		start = 0
	}
	for _, entry := range m.feed[start:] {
		line := m.styles.feedTime.Render(entry.when.Format("15:04:05")) + " " +
			m.palette.ForegroundStyle(entry.tone).Render(entry.text)
		lines = append(lines, ansi.Truncate(line, innerWidth, "…"))
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.feedTime.Render("no events yet"))
	}
	for len(lines) < feedVisible {
		lines = append(lines, "")
	}

	return m.styles.feedBox.Width(innerWidth + 2).Render(strings.Join(lines, "\n"))
}

func (m *model) renderStatusArea() string {
	switch {
	case m.shuttingDown:
		return m.spinner.View() + " stopping all programs"
	case m.confirmQuit:
		return m.styles.confirm.Render("Stop all running programs and quit? [y/N]")
	}

	var parts []string
	if m.busy > 0 {
		parts = append(parts, m.spinner.View())
	}
	if m.status != "" {
		parts = append(parts, m.palette.ForegroundStyle(m.statusTone).Render(m.status))
	}
	if len(parts) == 0 {
		return ""
	}
	return wordwrap.String(strings.Join(parts, " "), m.width)
}
