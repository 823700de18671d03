package testdef

import (
	"errors"
	"fmt"
)

// ErrNoEntrySection is returned when no entry point matches a section type.
var ErrNoEntrySection = errors.New("no entry section")

// EntryPoints returns the starting section followed by any additional entry
// sections, without duplicates.
func (t *Test) EntryPoints() []string {
	out := make([]string, 0, 1+len(t.EntrySectionIDs))
	seen := make(map[string]bool, cap(out))
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	add(t.StartingSectionID)
	for _, id := range t.EntrySectionIDs {
		add(id)
	}
	return out
}

// StartingSection picks the section an attempt begins in. With no hint it
// is startingSectionId; otherwise the first entry point of that type.
func (t *Test) StartingSection(hint SectionType) (string, error) {
	if hint == "" {
		if _, ok := t.Section(t.StartingSectionID); !ok {
			return "", fmt.Errorf("starting section %q: %w", t.StartingSectionID, ErrNoEntrySection)
		}
		return t.StartingSectionID, nil
	}
	for _, id := range t.EntryPoints() {
		if s, ok := t.Section(id); ok && s.Type == hint {
			return id, nil
		}
	}
	return "", fmt.Errorf("section type %q: %w", hint, ErrNoEntrySection)
}
