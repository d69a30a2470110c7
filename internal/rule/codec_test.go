package rule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize(t *testing.T) {
	data, err := Serialize(*Default())
	require.NoError(t, err)

	want := `{
  "enabled": false,
  "pattern": "",
  "replacement": "",
  "flags": "g",
  "scope": [
    "ai_output"
  ]
}`
	assert.Equal(t, want, string(data))
}

func TestSerializeKeepsMarkup(t *testing.T) {
	r := Rule{Enabled: true, Pattern: `<br\s*/?>`, Replacement: "\n", Flags: "gi"}

	data, err := Serialize(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pattern": "<br\\s*/?>"`)
	assert.Contains(t, string(data), `"scope": []`)
}

func TestDeserialize(t *testing.T) {
	t.Run("PartialPayload", func(t *testing.T) {
		p, err := Deserialize([]byte(`{"pattern": "a+", "flags": "gi"}`))
		require.NoError(t, err)
		require.NotNil(t, p.Pattern)
		require.NotNil(t, p.Flags)
		assert.Equal(t, "a+", *p.Pattern)
		assert.Equal(t, "gi", *p.Flags)
		assert.Nil(t, p.Enabled)
		assert.Nil(t, p.Replacement)
		assert.Nil(t, p.Scope)
	})

	t.Run("LegacyRegexField", func(t *testing.T) {
		p, err := Deserialize([]byte(`{"enabled": true, "regex": "foo", "replacement": "bar", "flags": "g"}`))
		require.NoError(t, err)
		assert.Equal(t, "foo", *p.Pattern)
		assert.True(t, *p.Enabled)
	})

	t.Run("PatternWinsOverLegacy", func(t *testing.T) {
		p, err := Deserialize([]byte(`{"regex": "old", "pattern": "new"}`))
		require.NoError(t, err)
		assert.Equal(t, "new", *p.Pattern)
	})

	t.Run("Scope", func(t *testing.T) {
		p, err := Deserialize([]byte(`{"pattern": "x", "scope": ["user_input", "ai_output", "user_input"]}`))
		require.NoError(t, err)
		assert.Equal(t, Scope{RoleUserInput, RoleAIOutput}, *p.Scope)
	})

	invalid := map[string]string{
		"MissingPattern": `{"enabled": true, "replacement": "b"}`,
		"NullPattern":    `{"pattern": null}`,
		"NotObject":      `["pattern"]`,
		"Null":           `null`,
		"Malformed":      `{"pattern": `,
		"WrongType":      `{"pattern": 42}`,
		"UnknownRole":    `{"pattern": "x", "scope": ["narrator"]}`,
	}
	for name, payload := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize([]byte(payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidImport), "got %v", err)
		})
	}
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Seraphina", "isolated_regex_Seraphina.json"},
		{"Dr.  Jekyll\tand Hyde", "isolated_regex_Dr._Jekyll_and_Hyde.json"},
		{" padded ", "isolated_regex__padded_.json"},
		{"a/b\\c", "isolated_regex_a_b_c.json"},
		{"", "isolated_regex_character.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExportFileName(tt.name))
		})
	}
}
