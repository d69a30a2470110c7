// Package store keeps one substitution rule per character inside the
// host's settings document.
package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/host"
	"github.com/raaihank/isolated-regex/internal/metrics"
	"github.com/raaihank/isolated-regex/internal/rule"
	"github.com/raaihank/isolated-regex/internal/settings"
)

// Settings is the host-owned settings object the rule table lives in
type Settings interface {
	// Update runs fn with exclusive access to the settings document
	Update(fn func(doc *settings.Document))
	// SaveDebounced asks the host to persist the settings
	SaveDebounced()
}

// Store maps stable character identities to rules. Every operation runs
// inside one Settings.Update call, so concurrent writes to the same
// character are last-writer-wins.
type Store struct {
	host     host.Context
	settings Settings
	logger   *zap.Logger
}

// New creates a rule store over the host's settings
func New(ctx host.Context, s Settings, logger *zap.Logger) *Store {
	return &Store{
		host:     ctx,
		settings: s,
		logger:   logger,
	}
}

// resolve maps a character reference to the roster entry. An empty ref
// means the active character.
func (s *Store) resolve(ref string) (host.Character, bool) {
	if ref == "" {
		return s.host.ActiveCharacter()
	}
	return s.host.Lookup(ref)
}

// materialize returns the record for avatar, inserting a default one when
// there is none. Must be called inside Settings.Update.
func materialize(doc *settings.Document, avatar string) *rule.Rule {
	table := doc.Table(settings.ExtensionName, settings.RulesKey)
	r, ok := table[avatar]
	if !ok || r == nil {
		r = rule.Default()
		table[avatar] = r
	}
	return r
}

// GetRule returns the live record of the referenced character, creating a
// default one on first access. Repeated calls return the same record. ok is
// false when the character cannot be resolved.
//
// The record belongs to the settings document; change it through SetRule
// or ImportRule rather than writing to it directly.
func (s *Store) GetRule(ref string) (*rule.Rule, bool) {
	c, ok := s.resolve(ref)
	if !ok {
		return nil, false
	}

	var r *rule.Rule
	s.settings.Update(func(doc *settings.Document) {
		r = materialize(doc, c.Avatar)
	})
	return r, true
}

// Snapshot returns a copy of the referenced character's rule
func (s *Store) Snapshot(ref string) (rule.Rule, bool) {
	c, ok := s.resolve(ref)
	if !ok {
		return rule.Rule{}, false
	}

	var r rule.Rule
	s.settings.Update(func(doc *settings.Document) {
		r = materialize(doc, c.Avatar).Clone()
	})
	return r, true
}

// SetRule replaces the referenced character's record with r and asks the
// host to save. It does nothing and returns false when the character cannot
// be resolved.
func (s *Store) SetRule(ref string, r rule.Rule) bool {
	c, ok := s.resolve(ref)
	if !ok {
		s.logger.Debug("Rule not saved, character unresolved", zap.String("ref", ref))
		return false
	}

	stored := r.Clone()
	s.settings.Update(func(doc *settings.Document) {
		doc.Table(settings.ExtensionName, settings.RulesKey)[c.Avatar] = &stored
	})
	s.settings.SaveDebounced()

	metrics.RuleWrites.WithLabelValues("set").Inc()
	s.logger.Debug("Rule saved",
		zap.String("avatar", c.Avatar),
		zap.Bool("enabled", stored.Enabled),
	)
	return true
}

// ImportRule merges the fields present in p into the referenced
// character's record and asks the host to save. The record is left
// untouched when p carries no pattern.
func (s *Store) ImportRule(ref string, p rule.Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}

	c, ok := s.resolve(ref)
	if !ok {
		return fmt.Errorf("cannot import rule for %q: %w", ref, rule.ErrNoActiveCharacter)
	}

	s.importAvatar(c.Avatar, p)
	return nil
}

// ImportAvatar merges p into the record stored for avatar without
// resolving it through the host. Bulk imports use it for characters that
// are not in the current roster.
func (s *Store) ImportAvatar(avatar string, p rule.Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if avatar == "" {
		return fmt.Errorf("cannot import rule: %w", rule.ErrNoActiveCharacter)
	}

	s.importAvatar(avatar, p)
	return nil
}

func (s *Store) importAvatar(avatar string, p rule.Patch) {
	s.settings.Update(func(doc *settings.Document) {
		p.MergeInto(materialize(doc, avatar))
	})
	s.settings.SaveDebounced()

	metrics.RuleWrites.WithLabelValues("import").Inc()
	s.logger.Info("Rule imported", zap.String("avatar", avatar))
}

// ExportRule serializes the referenced character's record
func (s *Store) ExportRule(ref string) ([]byte, error) {
	r, ok := s.Snapshot(ref)
	if !ok {
		return nil, fmt.Errorf("cannot export rule for %q: %w", ref, rule.ErrNoActiveCharacter)
	}
	return rule.Serialize(r)
}

// ExportFile serializes the referenced character's record together with
// the file name it should be saved under
func (s *Store) ExportFile(ref string) (string, []byte, error) {
	c, ok := s.resolve(ref)
	if !ok {
		return "", nil, fmt.Errorf("cannot export rule for %q: %w", ref, rule.ErrNoActiveCharacter)
	}

	data, err := s.ExportRule(c.Avatar)
	if err != nil {
		return "", nil, err
	}
	return rule.ExportFileName(c.Name), data, nil
}

// Rules returns a copy of every stored record keyed by avatar
func (s *Store) Rules() map[string]rule.Rule {
	out := make(map[string]rule.Rule)
	s.settings.Update(func(doc *settings.Document) {
		for avatar, r := range doc.Table(settings.ExtensionName, settings.RulesKey) {
			if r != nil {
				out[avatar] = r.Clone()
			}
		}
	})
	return out
}
