package widgets

import (
	"strconv"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	// PreferenceSidebarCollapsed stores "true" or "false".
	PreferenceSidebarCollapsed = "sidebarCollapsed"

	sidebarToggleID         = "sidebar-toggle"
	sidebarSelector         = ".sidebar"
	mainContentSelector     = ".main-content"
	classCollapsed          = "collapsed"
	classExpanded           = "expanded"
	reasonSidebarIncomplete = "#sidebar-toggle, .sidebar or .main-content missing"
)

// InitSidebar makes #sidebar-toggle collapse the sidebar and widen the main
// content, persists the state and restores a stored collapsed state.
func InitSidebar(environment Environment) capability.Result {
	environment = environment.normalized()
	document := environment.Document
	toggle, toggleFound := document.ElementByID(sidebarToggleID)
	sidebar, sidebarFound := document.QuerySelector(sidebarSelector)
	mainContent, mainFound := document.QuerySelector(mainContentSelector)
	if !toggleFound || !sidebarFound || !mainFound {
		return capability.NotApplicable(ModuleSidebar, reasonSidebarIncomplete)
	}

	toggle.AddEventListener(dom.EventClick, func(*dom.Event) {
		sidebar.ToggleClass(classCollapsed)
		mainContent.ToggleClass(classExpanded)
		environment.writePreference(PreferenceSidebarCollapsed, strconv.FormatBool(sidebar.HasClass(classCollapsed)))
	})

	if stored, found := environment.readPreference(PreferenceSidebarCollapsed); found && stored == "true" {
		sidebar.AddClass(classCollapsed)
		mainContent.AddClass(classExpanded)
	}
	return capability.Applied(ModuleSidebar)
}
