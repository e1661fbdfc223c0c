package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Output tables are never focused, so the cursor row is not highlighted
	s.Selected = lipgloss.NewStyle()
	return s
}

// NewTable creates a Bubbles table sized to show every row.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	styles := tableStyles()
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithStyles(styles),
	)
	headerHeight := lipgloss.Height(styles.Header.Render("X"))
	t.SetHeight(len(rows) + headerHeight)
	return t
}

// FitColumns sizes each column to its widest cell or title.
func FitColumns(titles []string, rows [][]string) []TableColumn {
	cols := make([]TableColumn, len(titles))
	for i, title := range titles {
		cols[i] = TableColumn{Title: title, Width: lipgloss.Width(title)}
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(cols) {
				if w := lipgloss.Width(cell); w > cols[i].Width {
					cols[i].Width = w
				}
			}
		}
	}
	return cols
}

// RenderTable renders rows under titles for CLI output. Columns are as wide
// as their content. Without heading only the rows are printed.
func RenderTable(titles []string, rows [][]string, heading bool) string {
	cols := FitColumns(titles, rows)
	if !heading {
		return renderRows(cols, rows)
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return trimBlankLines(NewTable(cols, tableRows).View()) + "\n"
}

// renderRows lays out rows with the same cell padding the table uses.
func renderRows(cols []TableColumn, rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			width := 0
			if i < len(cols) {
				width = cols[i].Width
			}
			cells[i] = " " + padRight(cell, width) + " "
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, ""), " "))
		b.WriteString("\n")
	}
	return b.String()
}

func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
