package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// legacyPatternKey is the field name used by files exported before the
// record carried a "pattern" field
const legacyPatternKey = "regex"

// Serialize renders a rule in the interchange format
func Serialize(r Rule) ([]byte, error) {
	if r.Scope == nil {
		r.Scope = Scope{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to serialize rule: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Deserialize reads a partial rule from an import file. The payload must be
// a JSON object with at least a pattern field.
func Deserialize(data []byte) (Patch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if fields == nil {
		return Patch{}, fmt.Errorf("%w: not an object", ErrInvalidImport)
	}

	if _, ok := fields["pattern"]; !ok {
		if legacy, ok := fields[legacyPatternKey]; ok {
			fields["pattern"] = legacy
		}
	}

	var p Patch
	if err := decodeField(fields, "enabled", &p.Enabled); err != nil {
		return Patch{}, err
	}
	if err := decodeField(fields, "pattern", &p.Pattern); err != nil {
		return Patch{}, err
	}
	if err := decodeField(fields, "replacement", &p.Replacement); err != nil {
		return Patch{}, err
	}
	if err := decodeField(fields, "flags", &p.Flags); err != nil {
		return Patch{}, err
	}
	if err := decodeField(fields, "scope", &p.Scope); err != nil {
		return Patch{}, err
	}

	if err := p.Validate(); err != nil {
		return Patch{}, err
	}
	return p, nil
}

// decodeField decodes fields[name] into *dst, leaving it nil when the field
// is absent or null
func decodeField[T any](fields map[string]json.RawMessage, name string, dst **T) error {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}

	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: field %s: %v", ErrInvalidImport, name, err)
	}
	*dst = v
	return nil
}

// ExportFileName returns the file name an exported rule is saved under
func ExportFileName(characterName string) string {
	return "isolated_regex_" + sanitizeName(characterName) + ".json"
}

// sanitizeName collapses whitespace runs to underscores and drops characters
// that are unsafe in file names
func sanitizeName(name string) string {
	if name == "" {
		return "character"
	}

	var b strings.Builder
	inSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		case r == '/' || r == '\\' || r == '"' || unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
		inSpace = false
	}
	return b.String()
}
