// Package status manages the configurable status vocabulary. The
// vocabulary lives in the task.statuses repository configuration key as a
// JSON array; when unset, the OPEN/IN_PROGRESS/CLOSED defaults apply.
package status

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ConfigKey is the repository configuration key holding the vocabulary.
const ConfigKey = "task.statuses"

// Status is one entry of the vocabulary. Shortcut allows one-letter
// status names on the command line; IsDone marks statuses that map to a
// remote tracker's "closed" state.
type Status struct {
	Name     string `json:"name"`
	Shortcut string `json:"shortcut,omitempty"`
	Color    string `json:"color,omitempty"`
	IsDone   bool   `json:"is_done,omitempty"`
}

// Manager resolves shortcuts, the starting/final statuses and colors.
type Manager struct {
	statuses []Status
}

// Defaults returns the built-in vocabulary.
func Defaults() []Status {
	return []Status{
		{Name: "OPEN", Shortcut: "o", Color: "red"},
		{Name: "IN_PROGRESS", Shortcut: "i", Color: "yellow"},
		{Name: "CLOSED", Shortcut: "c", Color: "green", IsDone: true},
	}
}

// NewManager builds a manager from the task.statuses configuration value.
// An empty or unparseable value falls back to the defaults.
func NewManager(configJSON string) *Manager {
	if configJSON != "" {
		var statuses []Status
		if err := json.Unmarshal([]byte(configJSON), &statuses); err == nil && len(statuses) > 0 {
			return &Manager{statuses: statuses}
		}
	}
	return &Manager{statuses: Defaults()}
}

// Statuses returns the vocabulary in order.
func (m *Manager) Statuses() []Status {
	return m.statuses
}

// FullName expands a shortcut to its status name. Anything that is not a
// known shortcut passes through unchanged.
func (m *Manager) FullName(s string) string {
	for _, st := range m.statuses {
		if s == st.Shortcut {
			return st.Name
		}
	}
	return s
}

// Starting returns the status assigned to newly created tasks.
func (m *Manager) Starting() string {
	return m.statuses[0].Name
}

// Final returns the status representing completed work (the last IsDone
// status, or the last status when none is marked).
func (m *Manager) Final() string {
	for i := len(m.statuses) - 1; i >= 0; i-- {
		if m.statuses[i].IsDone {
			return m.statuses[i].Name
		}
	}
	return m.statuses[len(m.statuses)-1].Name
}

// IsDone reports whether the named status maps to a closed remote state.
func (m *Manager) IsDone(name string) bool {
	for _, st := range m.statuses {
		if st.Name == name {
			return st.IsDone
		}
	}
	return false
}

// Vocabulary returns the pair threaded through connectors: the status for
// open remote tasks and the status for closed ones.
func (m *Manager) Vocabulary() []string {
	return []string{m.Starting(), m.Final()}
}

// Format renders a status name in its configured color. Plain text when
// noColor is set or the NO_COLOR convention is active.
func (m *Manager) Format(name string, noColor bool) string {
	if noColor || termenv.EnvNoColor() {
		return name
	}
	for _, st := range m.statuses {
		if st.Name == name && st.Color != "" {
			return lipgloss.NewStyle().Foreground(toColor(st.Color)).Render(name)
		}
	}
	return name
}

// toColor maps a configured color to a lipgloss color. Named ANSI colors,
// 256-palette indexes and #rrggbb values are accepted.
func toColor(c string) lipgloss.Color {
	switch strings.ToLower(c) {
	case "black":
		return lipgloss.Color("0")
	case "red":
		return lipgloss.Color("1")
	case "green":
		return lipgloss.Color("2")
	case "yellow":
		return lipgloss.Color("3")
	case "blue":
		return lipgloss.Color("4")
	case "magenta", "purple":
		return lipgloss.Color("5")
	case "cyan":
		return lipgloss.Color("6")
	case "white":
		return lipgloss.Color("7")
	case "darkgray", "darkgrey":
		return lipgloss.Color("8")
	case "lightred":
		return lipgloss.Color("9")
	case "lightgreen":
		return lipgloss.Color("10")
	case "lightyellow":
		return lipgloss.Color("11")
	case "lightblue":
		return lipgloss.Color("12")
	case "lightmagenta", "lightpurple":
		return lipgloss.Color("13")
	case "lightcyan":
		return lipgloss.Color("14")
	case "lightgray", "lightgrey":
		return lipgloss.Color("15")
	default:
		return lipgloss.Color(c)
	}
}
