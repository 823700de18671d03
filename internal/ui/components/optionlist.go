package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/adaptest/internal/ui/theme"
)

// Choice is one selectable option.
type Choice struct {
	ID   string
	Text string
}

// OptionList renders a question's options with a cursor. It only tracks
// the cursor; which options are chosen is owned by the caller.
type OptionList struct {
	Choices []Choice
	Multi   bool
	Cursor  int
}

// NewOptionList creates an option list with the cursor on the first choice.
func NewOptionList(choices []Choice, multi bool) OptionList {
	return OptionList{Choices: choices, Multi: multi}
}

// Update moves the cursor on up/down (or k/j).
func (o OptionList) Update(msg tea.Msg) (OptionList, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return o, nil
	}
	switch kmsg.String() {
	case "up", "k":
		if o.Cursor > 0 {
			o.Cursor--
		}
	case "down", "j":
		if o.Cursor < len(o.Choices)-1 {
			o.Cursor++
		}
	}
	return o, nil
}

// Current returns the choice under the cursor.
func (o OptionList) Current() (Choice, bool) {
	if o.Cursor < 0 || o.Cursor >= len(o.Choices) {
		return Choice{}, false
	}
	return o.Choices[o.Cursor], true
}

// At returns the choice for a 1-based number key.
func (o OptionList) At(n int) (Choice, bool) {
	if n < 1 || n > len(o.Choices) {
		return Choice{}, false
	}
	return o.Choices[n-1], true
}

// View renders the options. chosen reports whether an option id is part of
// the current answer; correct, when non-nil, marks the answer key.
func (o OptionList) View(chosen func(id string) bool, correct func(id string) bool) string {
	var b strings.Builder
	for i, c := range o.Choices {
		mark := "( )"
		if o.Multi {
			mark = "[ ]"
		}
		if chosen(c.ID) {
			mark = "(•)"
			if o.Multi {
				mark = "[x]"
			}
		}
		prefix := "  "
		if i == o.Cursor {
			prefix = "▸ "
		}
		line := fmt.Sprintf("%s%d. %s %s) %s", prefix, i+1, mark, c.ID, c.Text)

		style := theme.Unselected
		switch {
		case correct != nil && correct(c.ID):
			style = theme.Correct
		case correct != nil && chosen(c.ID):
			style = theme.Incorrect
		case i == o.Cursor:
			style = theme.Selected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
