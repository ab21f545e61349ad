// Package models defines the domain types shared by vaultfix packages.
package models

import "time"

// NoteMetadata is a lightweight representation returned by vault listings.
type NoteMetadata struct {
	Path      string    `json:"path"` // relative to vault root, slash separated
	Name      string    `json:"name"` // base name including ".md"
	UpdatedAt time.Time `json:"updated_at"`
}

// Stem returns the file name without its ".md" extension.
func (m NoteMetadata) Stem() string {
	if len(m.Name) > 3 {
		return m.Name[:len(m.Name)-3]
	}
	return m.Name
}

// Event is one recorded action taken against the vault during a step.
type Event struct {
	Action string    `json:"action"`
	Src    string    `json:"src,omitempty"`
	Dst    string    `json:"dst,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}
