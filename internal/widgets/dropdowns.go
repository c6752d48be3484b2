package widgets

import (
	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	dropdownSelector        = ".dropdown"
	dropdownTriggerSelector = ".dropdown-trigger"
	dropdownMenuSelector    = ".dropdown-menu"
	classOpen               = "open"
	reasonNoDropdowns       = "no .dropdown with trigger and menu"
)

// InitDropdowns wires every .dropdown: a trigger click closes the other menus
// and toggles its own, a click anywhere else closes menus, and clicks inside a
// menu stay inside it.
func InitDropdowns(environment Environment) capability.Result {
	environment = environment.normalized()
	document := environment.Document
	dropdowns := document.QuerySelectorAll(dropdownSelector)

	wired := 0
	for _, dropdown := range dropdowns {
		trigger, triggerFound := dropdown.QuerySelector(dropdownTriggerSelector)
		menu, menuFound := dropdown.QuerySelector(dropdownMenuSelector)
		if !triggerFound || !menuFound {
			continue
		}
		current := dropdown
		trigger.AddEventListener(dom.EventClick, func(event *dom.Event) {
			event.StopPropagation()
			for _, other := range dropdowns {
				if other == current {
					continue
				}
				if otherMenu, found := other.QuerySelector(dropdownMenuSelector); found {
					otherMenu.RemoveClass(classOpen)
				}
			}
			menu.ToggleClass(classOpen)
		})
		document.AddEventListener(dom.EventClick, func(*dom.Event) {
			menu.RemoveClass(classOpen)
		})
		menu.AddEventListener(dom.EventClick, func(event *dom.Event) {
			event.StopPropagation()
		})
		wired++
	}

	if wired == 0 {
		return capability.NotApplicable(ModuleDropdowns, reasonNoDropdowns)
	}
	return capability.Applied(ModuleDropdowns)
}
