package widgets

import (
	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

// Theme is the page colour theme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

const (
	// PreferenceTheme stores the last explicit theme choice.
	PreferenceTheme = "theme"
	// AttributeTheme is written on the root element.
	AttributeTheme = "data-theme"

	darkModeToggleID      = "dark-mode-toggle"
	reasonDarkModeMissing = "#dark-mode-toggle missing"
)

// ResolveTheme picks the stored theme when one was saved and the system
// preference otherwise.
func ResolveTheme(saved string, prefersDark bool) Theme {
	if saved == string(ThemeDark) || (saved == "" && prefersDark) {
		return ThemeDark
	}
	return ThemeLight
}

// InitDarkMode applies the resolved theme to the root element and the toggle,
// and persists every change of the toggle.
func InitDarkMode(environment Environment) capability.Result {
	environment = environment.normalized()
	document := environment.Document
	toggle, found := document.ElementByID(darkModeToggleID)
	if !found {
		return capability.NotApplicable(ModuleDarkMode, reasonDarkModeMissing)
	}
	root := document.DocumentElement()

	saved, _ := environment.readPreference(PreferenceTheme)
	theme := ResolveTheme(saved, environment.PrefersDark)
	root.SetAttribute(AttributeTheme, string(theme))
	toggle.SetChecked(theme == ThemeDark)

	toggle.AddEventListener(dom.EventChange, func(*dom.Event) {
		chosen := ThemeLight
		if toggle.Checked() {
			chosen = ThemeDark
		}
		root.SetAttribute(AttributeTheme, string(chosen))
		environment.writePreference(PreferenceTheme, string(chosen))
	})
	return capability.Applied(ModuleDarkMode)
}
