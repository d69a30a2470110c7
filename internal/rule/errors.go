package rule

import "errors"

var (
	// ErrNoActiveCharacter means the host could not resolve a character
	ErrNoActiveCharacter = errors.New("no active character")
	// ErrInvalidImport means an import payload carried no usable pattern
	ErrInvalidImport = errors.New("invalid import payload")
)
