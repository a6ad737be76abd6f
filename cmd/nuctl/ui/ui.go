// Package ui holds nuctl's terminal output helpers, trimmed down from the
// teacher CLI's palette-and-table idiom to what an admin tool for a single
// node needs.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	ErrorStyle   = lipgloss.NewStyle().Foreground(red)
	WarnStyle    = lipgloss.NewStyle().Foreground(yellow)
	MutedStyle   = lipgloss.NewStyle().Foreground(dim)
)

func Muted(s string) string { return MutedStyle.Render(s) }

func SuccessMsg(format string, a ...any) string {
	return SuccessStyle.Render(fmt.Sprintf(format, a...))
}

func WarnMsg(format string, a ...any) string {
	return WarnStyle.Render(fmt.Sprintf(format, a...))
}

func ErrorMsg(format string, a ...any) string {
	return ErrorStyle.Render(fmt.Sprintf(format, a...))
}

// Table renders headers/rows with alternating-row muting, matching the
// teacher CLI's table style.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)
	evenStyle := cellStyle

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}
