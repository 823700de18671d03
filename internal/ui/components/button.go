package components

import (
	"strings"

	"github.com/abhisek/adaptest/internal/ui/theme"
)

// Button is a styled, non-interactive button label. The owning screen
// decides which button is active and what pressing it does.
type Button struct {
	Label  string
	Active bool
}

// View renders the button.
func (b Button) View() string {
	label := "  ▸ " + b.Label + " "
	if b.Active {
		return theme.ButtonActive.Render(label)
	}
	return theme.ButtonInactive.Render(label)
}

// ButtonRow renders labels side by side with the button at active
// highlighted.
func ButtonRow(active int, labels ...string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = Button{Label: l, Active: i == active}.View()
	}
	return strings.Join(parts, "  ")
}
