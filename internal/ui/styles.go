package ui

import "github.com/charmbracelet/lipgloss"

// Agent-state halo colors. The status bar and panel borders shift with the
// agent's state so the whole shell reads as one organism.
var stateColors = map[string]lipgloss.Color{
	"idle":      lipgloss.Color("39"),  // cyan
	"planning":  lipgloss.Color("135"), // violet
	"acting":    lipgloss.Color("214"), // amber
	"listening": lipgloss.Color("48"),  // green
	"error":     lipgloss.Color("196"), // red
}

// Styles bundles the lipgloss styles used by the shell.
type Styles struct {
	ActiveTab    lipgloss.Style
	InactiveTab  lipgloss.Style
	Panel        lipgloss.Style
	FocusedPanel lipgloss.Style
	StatusBar    lipgloss.Style
	StatusState  lipgloss.Style
	InputPrompt  lipgloss.Style
	ThoughtUser  lipgloss.Style
	ThoughtSys   lipgloss.Style
	ThoughtErr   lipgloss.Style
	ThoughtAct   lipgloss.Style
	Glitch       lipgloss.Style
	Muted        lipgloss.Style
}

// NewStyles builds the default style set.
func NewStyles() *Styles {
	return &Styles{
		ActiveTab: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("57")).
			Padding(0, 1),
		InactiveTab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")),
		FocusedPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("57")),
		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),
		StatusState: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1),
		InputPrompt: lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true),
		ThoughtUser: lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true),
		ThoughtSys:  lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
		ThoughtErr:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		ThoughtAct:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Glitch: lipgloss.NewStyle().
			Foreground(lipgloss.Color("201")).
			Bold(true).
			Blink(true),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// StateColor returns the halo color for an agent state.
func StateColor(state string) lipgloss.Color {
	if c, ok := stateColors[state]; ok {
		return c
	}
	return stateColors["idle"]
}
