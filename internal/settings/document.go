// Package settings holds the host-owned settings document and persists it.
package settings

import "github.com/raaihank/isolated-regex/internal/rule"

const (
	// ExtensionName is the namespace the rule table is nested under
	ExtensionName = "st-isolated-regex"
	// RulesKey is the key of the rule table inside the namespace
	RulesKey = "isolated_regex_data"
)

// Table maps a character's stable identity to its rule
type Table map[string]*rule.Rule

// Document is the settings tree owned by the host. Extensions keep their
// tables under Extensions[extension][key].
type Document struct {
	Extensions map[string]map[string]Table `json:"extension_settings"`
}

// NewDocument returns an empty document
func NewDocument() *Document {
	return &Document{Extensions: make(map[string]map[string]Table)}
}

// Table returns the table at extension/key, creating missing levels
func (d *Document) Table(extension, key string) Table {
	if d.Extensions == nil {
		d.Extensions = make(map[string]map[string]Table)
	}
	ns := d.Extensions[extension]
	if ns == nil {
		ns = make(map[string]Table)
		d.Extensions[extension] = ns
	}
	t := ns[key]
	if t == nil {
		t = make(Table)
		ns[key] = t
	}
	return t
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	c := NewDocument()
	for ext, ns := range d.Extensions {
		for key, table := range ns {
			dst := c.Table(ext, key)
			for avatar, r := range table {
				if r == nil {
					continue
				}
				cp := r.Clone()
				dst[avatar] = &cp
			}
		}
	}
	return c
}

// Rules returns the number of rules across all tables
func (d *Document) Rules() int {
	n := 0
	for _, ns := range d.Extensions {
		for _, table := range ns {
			n += len(table)
		}
	}
	return n
}
