package widgets

import (
	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	scrollRevealSelector = ".scroll-reveal"
	classScrolled        = "scrolled"
	// scrollRevealDividend shrinks the viewport an element must enter before it
	// is revealed.
	scrollRevealDividend   = 1.25
	reasonNoScrollElements = "no .scroll-reveal element"
)

// InitScrollEffects marks .scroll-reveal elements as scrolled once their top
// enters the upper viewport and clears the mark once it falls below the
// viewport. It evaluates immediately and on every scroll.
func InitScrollEffects(environment Environment) capability.Result {
	environment = environment.normalized()
	document := environment.Document
	elements := document.QuerySelectorAll(scrollRevealSelector)
	if len(elements) == 0 {
		return capability.NotApplicable(ModuleScrollEffects, reasonNoScrollElements)
	}

	window := document.Window()
	handleScroll := func() {
		for _, element := range elements {
			top := window.BoundingClientRect(element).Top
			switch {
			case top <= window.InnerHeight()/scrollRevealDividend:
				element.AddClass(classScrolled)
			case top > window.InnerHeight():
				element.RemoveClass(classScrolled)
			}
		}
	}
	window.AddScrollListener(func(*dom.Event) {
		handleScroll()
	})
	handleScroll()
	return capability.Applied(ModuleScrollEffects)
}
