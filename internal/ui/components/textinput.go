package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// NumericChars are accepted by numeric-entry inputs: digits, sign, decimal
// point, thousands separator and the fraction slash.
const NumericChars = "0123456789.-,/"

// CalculatorChars are accepted by the calculator input.
const CalculatorChars = NumericChars + "+*x "

// TextInput wraps bubbles/textinput and drops printable keys outside
// Allowed. An empty Allowed accepts everything.
type TextInput struct {
	Model   textinput.Model
	Allowed string
}

// NewTextInput creates a focused text input.
func NewTextInput(placeholder, allowed string, charLimit int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	if charLimit > 0 {
		ti.CharLimit = charLimit
	}
	return TextInput{Model: ti, Allowed: allowed}
}

// Init returns the focus command.
func (t TextInput) Init() tea.Cmd {
	return t.Model.Focus()
}

// Accepts reports whether the key would be typed into the input rather
// than dropped by the filter.
func (t TextInput) Accepts(msg tea.KeyMsg) bool {
	key := msg.String()
	if key == "space" {
		key = " "
	}
	if len([]rune(key)) != 1 {
		return true // editing and navigation keys
	}
	return t.Allowed == "" || strings.Contains(t.Allowed, key)
}

// Update forwards msg to the wrapped model unless it is a filtered key.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok && !t.Accepts(kmsg) {
		return t, nil
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// View renders the text input.
func (t TextInput) View() string {
	return t.Model.View()
}

// Value returns the current input value.
func (t TextInput) Value() string {
	return t.Model.Value()
}

// SetValue replaces the input value and moves the cursor to the end.
func (t *TextInput) SetValue(v string) {
	t.Model.SetValue(v)
	t.Model.CursorEnd()
}

// Reset clears the input.
func (t *TextInput) Reset() {
	t.Model.Reset()
}
