package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRoster() []Character {
	return []Character{
		{Avatar: "seraphina.png", Name: "Seraphina"},
		{Avatar: "aqua.png", Name: "Aqua"},
	}
}

func TestSessionLookup(t *testing.T) {
	s, err := NewSession(testRoster(), zap.NewNop())
	require.NoError(t, err)

	c, ok := s.Lookup("aqua.png")
	require.True(t, ok)
	assert.Equal(t, "Aqua", c.Name)

	c, ok = s.Lookup("0")
	require.True(t, ok)
	assert.Equal(t, "seraphina.png", c.Avatar)

	_, ok = s.Lookup("2")
	assert.False(t, ok)
	_, ok = s.Lookup("-1")
	assert.False(t, ok)
	_, ok = s.Lookup("missing.png")
	assert.False(t, ok)
}

func TestSessionActiveCharacter(t *testing.T) {
	s, err := NewSession(testRoster(), zap.NewNop())
	require.NoError(t, err)

	_, ok := s.ActiveCharacter()
	assert.False(t, ok, "no character is selected initially")

	var events []Character
	s.OnCharacterChanged(func(c Character, ok bool) {
		events = append(events, c)
	})

	_, err = s.Select("1")
	require.NoError(t, err)
	c, ok := s.ActiveCharacter()
	require.True(t, ok)
	assert.Equal(t, "aqua.png", c.Avatar)

	// selecting the same character again is not a change
	_, err = s.Select("aqua.png")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = s.Select("nobody.png")
	assert.Error(t, err)
}

func TestSessionRosterReorderKeepsSelection(t *testing.T) {
	s, err := NewSession(testRoster(), zap.NewNop())
	require.NoError(t, err)
	_, err = s.Select("seraphina.png")
	require.NoError(t, err)

	reordered := []Character{
		{Avatar: "new.png", Name: "Newcomer"},
		{Avatar: "aqua.png", Name: "Aqua"},
		{Avatar: "seraphina.png", Name: "Seraphina"},
	}
	require.NoError(t, s.SetRoster(reordered))

	c, ok := s.ActiveCharacter()
	require.True(t, ok)
	assert.Equal(t, "seraphina.png", c.Avatar)

	// index 0 now points at a different character
	c, ok = s.Lookup("0")
	require.True(t, ok)
	assert.Equal(t, "new.png", c.Avatar)
}

func TestSessionRosterDropClearsSelection(t *testing.T) {
	s, err := NewSession(testRoster(), zap.NewNop())
	require.NoError(t, err)
	_, err = s.Select("aqua.png")
	require.NoError(t, err)

	cleared := false
	s.OnCharacterChanged(func(c Character, ok bool) {
		cleared = !ok
	})

	require.NoError(t, s.SetRoster(testRoster()[:1]))
	_, ok := s.ActiveCharacter()
	assert.False(t, ok)
	assert.True(t, cleared)
}

func TestSessionRejectsBadRoster(t *testing.T) {
	_, err := NewSession([]Character{{Name: "No avatar"}}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSession([]Character{{Avatar: "a.png"}, {Avatar: "a.png"}}, zap.NewNop())
	assert.Error(t, err)
}
