package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// noColor reports whether styling should be suppressed, honoring both
// NO_COLOR and the color.ui git setting.
func noColor(colorEnabled bool) bool {
	return !colorEnabled || termenv.EnvNoColor()
}

func render(style lipgloss.Style, s string, colorEnabled bool) string {
	if noColor(colorEnabled) {
		return s
	}
	return style.Render(s)
}

// formatEpoch renders an epoch-seconds property as a local timestamp.
// Unparseable values pass through unchanged.
func formatEpoch(s string) string {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return time.Unix(secs, 0).Format("2006-01-02 15:04")
}

// table renders rows as aligned columns with a bold header.
func table(headers []string, rows [][]string, colorEnabled bool) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(pad(render(headerStyle, h, colorEnabled), lipgloss.Width(h), widths[i]))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteByte('\n')
	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(pad(cell, lipgloss.Width(cell), widths[i]))
			if i < len(row)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// pad right-pads by visible width, so styled cells line up despite the
// escape sequences lipgloss injects.
func pad(cell string, visible, width int) string {
	if visible >= width {
		return cell
	}
	return cell + strings.Repeat(" ", width-visible)
}
