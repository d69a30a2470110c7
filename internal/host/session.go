package host

import (
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// ChangeHandler is called when the active character changes. ok is false
// when the selection was cleared.
type ChangeHandler func(c Character, ok bool)

// Session is an in-process host. It keeps the roster in display order and
// tracks which entry is selected. Roster positions are session indices and
// are reassigned by SetRoster; avatars are not.
type Session struct {
	mu       sync.RWMutex
	roster   []Character
	active   string
	handlers []ChangeHandler
	logger   *zap.Logger
}

// NewSession creates a session with the given roster and no selection
func NewSession(roster []Character, logger *zap.Logger) (*Session, error) {
	s := &Session{logger: logger}
	if err := s.SetRoster(roster); err != nil {
		return nil, err
	}
	return s, nil
}

// SetRoster replaces the roster. The selection survives when the active
// avatar is still present.
func (s *Session) SetRoster(roster []Character) error {
	seen := make(map[string]bool, len(roster))
	for i, c := range roster {
		if c.Avatar == "" {
			return fmt.Errorf("character %d has no avatar", i)
		}
		if seen[c.Avatar] {
			return fmt.Errorf("duplicate avatar: %s", c.Avatar)
		}
		seen[c.Avatar] = true
	}

	s.mu.Lock()
	s.roster = append([]Character(nil), roster...)
	cleared := s.active != "" && !seen[s.active]
	if cleared {
		s.active = ""
	}
	handlers := s.handlers
	s.mu.Unlock()

	s.logger.Info("Character roster updated", zap.Int("characters", len(roster)))

	if cleared {
		notify(handlers, Character{}, false)
	}
	return nil
}

// Characters returns a copy of the roster
func (s *Session) Characters() []Character {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Character(nil), s.roster...)
}

// ActiveCharacter implements Context
func (s *Session) ActiveCharacter() (Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == "" {
		return Character{}, false
	}
	return s.find(s.active)
}

// Lookup implements Context. ref is an avatar or a decimal session index.
func (s *Session) Lookup(ref string) (Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(ref)
}

// Select makes the referenced character active and notifies subscribers
func (s *Session) Select(ref string) (Character, error) {
	s.mu.Lock()
	c, ok := s.lookup(ref)
	if !ok {
		s.mu.Unlock()
		return Character{}, fmt.Errorf("unknown character: %s", ref)
	}
	changed := s.active != c.Avatar
	s.active = c.Avatar
	handlers := s.handlers
	s.mu.Unlock()

	if changed {
		s.logger.Info("Active character changed",
			zap.String("avatar", c.Avatar),
			zap.String("name", c.Name),
		)
		notify(handlers, c, true)
	}
	return c, nil
}

// OnCharacterChanged subscribes fn to selection changes
func (s *Session) OnCharacterChanged(fn ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

func (s *Session) lookup(ref string) (Character, bool) {
	if c, ok := s.find(ref); ok {
		return c, true
	}
	if idx, err := strconv.Atoi(ref); err == nil && idx >= 0 && idx < len(s.roster) {
		return s.roster[idx], true
	}
	return Character{}, false
}

func (s *Session) find(avatar string) (Character, bool) {
	for _, c := range s.roster {
		if c.Avatar == avatar {
			return c, true
		}
	}
	return Character{}, false
}

func notify(handlers []ChangeHandler, c Character, ok bool) {
	for _, fn := range handlers {
		fn(c, ok)
	}
}
