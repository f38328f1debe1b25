// Package model defines the core domain types for the intake engine.
package model

import "strings"

// Category represents a destination record type with its own worksheet.
// The description is free text used as classification context for the LLM.
type Category struct {
	Name        string
	Description string
}

// Catalogue is an ordered set of categories read fresh per request.
type Catalogue []Category

// Names returns the category names in catalogue order.
func (c Catalogue) Names() []string {
	names := make([]string, len(c))
	for i, cat := range c {
		names[i] = cat.Name
	}
	return names
}

// Resolve maps a model-returned category name back onto the canonical
// catalogue entry, ignoring case and surrounding whitespace. It returns
// the empty string when the name is not in the catalogue.
func (c Catalogue) Resolve(name string) string {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return ""
	}
	for _, cat := range c {
		if strings.ToLower(strings.TrimSpace(cat.Name)) == want {
			return cat.Name
		}
	}
	return ""
}

// Contains reports whether name resolves to a catalogue entry.
func (c Catalogue) Contains(name string) bool {
	return c.Resolve(name) != ""
}
