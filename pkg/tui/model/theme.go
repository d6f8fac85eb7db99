package model

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/sqlshift/pkg/state"
)

// ThemeStore persists the display preference.
type ThemeStore interface {
	Theme() (state.Theme, error)
	SetTheme(state.Theme) error
}

// ApplyTheme sets lipgloss's background detection for t and reports whether
// the result is dark. Call it before the program draws its first frame.
func ApplyTheme(t state.Theme) bool {
	var dark bool
	switch t {
	case state.ThemeDark:
		dark = true
	case state.ThemeLight:
		dark = false
	default:
		dark = lipgloss.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(dark)
	return dark
}

// nextTheme flips between explicit dark and light.
func nextTheme(dark bool) state.Theme {
	if dark {
		return state.ThemeLight
	}
	return state.ThemeDark
}
