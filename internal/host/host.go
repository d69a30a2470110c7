// Package host adapts the chat front-end the rule store plugs into.
package host

// Character is a roster entry. Avatar is the stable identity the host keeps
// across reloads; Name is for display only.
type Character struct {
	Avatar string `json:"avatar"`
	Name   string `json:"name"`
}

// Context resolves characters in the host
type Context interface {
	// ActiveCharacter returns the character currently selected in the host
	ActiveCharacter() (Character, bool)
	// Lookup resolves a character reference to a roster entry
	Lookup(ref string) (Character, bool)
}
