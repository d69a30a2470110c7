package rule

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies which side of the conversation a message came from
type Role string

const (
	// RoleAIOutput is model-generated text
	RoleAIOutput Role = "ai_output"
	// RoleUserInput is text submitted by the user
	RoleUserInput Role = "user_input"
)

// DefaultFlags is the flag set given to freshly materialized rules
const DefaultFlags = "g"

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAIOutput, RoleUserInput:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q (must be %s or %s)", s, RoleAIOutput, RoleUserInput)
	}
}

// Scope is the set of message roles a rule applies to
type Scope []Role

// DefaultScope returns the scope of a freshly materialized rule
func DefaultScope() Scope {
	return Scope{RoleAIOutput}
}

// Has reports whether the scope contains role
func (s Scope) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// String joins the roles with commas, the form used by table columns
func (s Scope) String() string {
	names := make([]string, len(s))
	for i, role := range s {
		names[i] = string(role)
	}
	return strings.Join(names, ",")
}

// ParseScopeList parses a comma-separated role list. Blank input yields an
// empty scope; duplicates are dropped.
func ParseScopeList(list string) (Scope, error) {
	scope := Scope{}
	if strings.TrimSpace(list) == "" {
		return scope, nil
	}
	for _, name := range strings.Split(list, ",") {
		role, err := ParseRole(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if !scope.Has(role) {
			scope = append(scope, role)
		}
	}
	return scope, nil
}

// UnmarshalJSON rejects unknown roles and drops duplicates
func (s *Scope) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("scope must be an array of roles: %w", err)
	}

	scope := make(Scope, 0, len(names))
	for _, name := range names {
		role, err := ParseRole(name)
		if err != nil {
			return err
		}
		if !scope.Has(role) {
			scope = append(scope, role)
		}
	}

	*s = scope
	return nil
}

// Rule is the substitution configured for one character
type Rule struct {
	Enabled     bool   `json:"enabled"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Flags       string `json:"flags"`
	Scope       Scope  `json:"scope"`
}

// Default returns a disabled rule with an empty pattern
func Default() *Rule {
	return &Rule{
		Enabled:     false,
		Pattern:     "",
		Replacement: "",
		Flags:       DefaultFlags,
		Scope:       DefaultScope(),
	}
}

// Active reports whether applying the rule can change any text
func (r *Rule) Active() bool {
	return r != nil && r.Enabled && r.Pattern != ""
}

// Clone returns a deep copy
func (r Rule) Clone() Rule {
	if r.Scope != nil {
		r.Scope = append(Scope(nil), r.Scope...)
	}
	return r
}

// Patch is a partial rule read from an import file. Nil fields are left
// untouched when the patch is merged.
type Patch struct {
	Enabled     *bool
	Pattern     *string
	Replacement *string
	Flags       *string
	Scope       *Scope
}

// PatchFrom returns a patch carrying every field of r
func PatchFrom(r Rule) Patch {
	r = r.Clone()
	return Patch{
		Enabled:     &r.Enabled,
		Pattern:     &r.Pattern,
		Replacement: &r.Replacement,
		Flags:       &r.Flags,
		Scope:       &r.Scope,
	}
}

// Validate checks the patch is importable
func (p Patch) Validate() error {
	if p.Pattern == nil {
		return fmt.Errorf("%w: missing pattern field", ErrInvalidImport)
	}
	return nil
}

// MergeInto copies the present fields of p into r
func (p Patch) MergeInto(r *Rule) {
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Pattern != nil {
		r.Pattern = *p.Pattern
	}
	if p.Replacement != nil {
		r.Replacement = *p.Replacement
	}
	if p.Flags != nil {
		r.Flags = *p.Flags
	}
	if p.Scope != nil {
		r.Scope = append(Scope(nil), (*p.Scope)...)
	}
}
