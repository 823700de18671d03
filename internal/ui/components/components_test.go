package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func key(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func TestOptionList_Cursor(t *testing.T) {
	o := NewOptionList([]Choice{{ID: "A", Text: "one"}, {ID: "B", Text: "two"}}, false)

	o, _ = o.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	c, ok := o.Current()
	assert.True(t, ok)
	assert.Equal(t, "B", c.ID)

	// Stays on the last option.
	o, _ = o.Update(key('j'))
	assert.Equal(t, 1, o.Cursor)

	o, _ = o.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	assert.Equal(t, 0, o.Cursor)
}

func TestOptionList_At(t *testing.T) {
	o := NewOptionList([]Choice{{ID: "A"}, {ID: "B"}}, true)
	c, ok := o.At(2)
	assert.True(t, ok)
	assert.Equal(t, "B", c.ID)
	_, ok = o.At(3)
	assert.False(t, ok)
	_, ok = o.At(0)
	assert.False(t, ok)
}

func TestOptionList_ViewMarksChosen(t *testing.T) {
	o := NewOptionList([]Choice{{ID: "A", Text: "one"}, {ID: "B", Text: "two"}}, true)
	view := o.View(func(id string) bool { return id == "B" }, nil)
	lines := strings.Split(strings.TrimSpace(view), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[ ]")
	assert.Contains(t, lines[1], "[x]")
}

func TestTextInput_Filter(t *testing.T) {
	in := NewTextInput("", NumericChars, 0)
	for _, r := range "1a2.5x" {
		in, _ = in.Update(key(r))
	}
	assert.Equal(t, "12.5", in.Value())
	assert.False(t, in.Accepts(key('f')))
	assert.True(t, in.Accepts(tea.KeyPressMsg{Code: tea.KeyBackspace}))
}

func TestProgressBar_Fraction(t *testing.T) {
	assert.Equal(t, 0.0, NewProgressBar("", 1, 0, 20).Fraction())
	assert.Equal(t, 0.5, NewProgressBar("", 2, 4, 20).Fraction())
	assert.Equal(t, 1.0, NewProgressBar("", 5, 4, 20).Fraction())
	assert.Contains(t, NewProgressBar("Answered", 2, 4, 40).View(), "2/4")
}

func TestButtonRow(t *testing.T) {
	row := ButtonRow(0, "Submit", "Keep working")
	assert.Contains(t, row, "Submit")
	assert.Contains(t, row, "Keep working")
}
