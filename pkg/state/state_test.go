package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.BearerToken)
	assert.True(t, s.TokenExpiry.IsZero())
}

func TestParseState(t *testing.T) {
	yaml := `
bearer_token: abc.def.ghi
token_expiry: 2026-10-19T12:00:00Z
theme: dark
`
	s, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", s.BearerToken)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), s.TokenExpiry.UTC())
	assert.Equal(t, ThemeDark, s.Theme)
}

func TestFileStoreTokenLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.yaml")
	fs := NewFileStore(path)
	expiry := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

	require.NoError(t, fs.SetTheme(ThemeLight))
	require.NoError(t, fs.SaveToken("tok-1", expiry))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, exp, err := fs.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.True(t, exp.Equal(expiry))

	require.NoError(t, fs.ClearToken())
	tok, exp, err = fs.LoadToken()
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.True(t, exp.IsZero())

	theme, err := fs.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme, "clearing the token keeps the theme")
}

func TestParseTheme(t *testing.T) {
	for _, in := range []string{"", "system"} {
		got, err := ParseTheme(in)
		require.NoError(t, err)
		assert.Equal(t, ThemeSystem, got)
	}
	_, err := ParseTheme("solarized")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	var m MemoryStore
	require.NoError(t, m.SaveToken("x", time.Unix(100, 0)))
	tok, _, _ := m.LoadToken()
	assert.Equal(t, "x", tok)
	require.NoError(t, m.ClearToken())
	tok, _, _ = m.LoadToken()
	assert.Empty(t, tok)
	theme, _ := m.Theme()
	assert.Equal(t, ThemeSystem, theme)
}
