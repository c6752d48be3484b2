package dom

// IntersectionEntry reports the visibility of one observed element.
type IntersectionEntry struct {
	Target *Element
	Ratio  float64
	// IsIntersecting is true when Ratio has reached the observer threshold.
	IsIntersecting bool
}

// IntersectionCallback receives entries whose threshold state changed.
type IntersectionCallback func(entries []IntersectionEntry, observer *IntersectionObserver)

// IntersectionObserver notifies when observed elements cross a visibility
// threshold. Like the browser API it reports the initial state on Observe and
// then only threshold crossings.
type IntersectionObserver struct {
	window    *Window
	threshold float64
	callback  IntersectionCallback
	targets   []*observedTarget
}

type observedTarget struct {
	element     *Element
	reported    bool
	intersected bool
}

// NewIntersectionObserver creates an observer bound to window.
func (window *Window) NewIntersectionObserver(threshold float64, callback IntersectionCallback) *IntersectionObserver {
	return &IntersectionObserver{
		window:    window,
		threshold: threshold,
		callback:  callback,
	}
}

// Threshold returns the configured visibility ratio.
func (observer *IntersectionObserver) Threshold() float64 {
	return observer.threshold
}

// Observe starts watching element and reports its current state.
func (observer *IntersectionObserver) Observe(element *Element) {
	if element == nil || observer.Observing(element) {
		return
	}
	observer.targets = append(observer.targets, &observedTarget{element: element})
	observer.window.attachObserver(observer)
	observer.evaluate()
}

// Unobserve stops watching element.
func (observer *IntersectionObserver) Unobserve(element *Element) {
	remaining := observer.targets[:0]
	for _, target := range observer.targets {
		if target.element != element {
			remaining = append(remaining, target)
		}
	}
	observer.targets = remaining
	if len(observer.targets) == 0 {
		observer.window.detachObserver(observer)
	}
}

// Disconnect stops watching every element.
func (observer *IntersectionObserver) Disconnect() {
	observer.targets = nil
	observer.window.detachObserver(observer)
}

// Observing reports whether element is being watched.
func (observer *IntersectionObserver) Observing(element *Element) bool {
	for _, target := range observer.targets {
		if target.element == element {
			return true
		}
	}
	return false
}

// Active reports whether the observer still watches any element.
func (observer *IntersectionObserver) Active() bool {
	return len(observer.targets) > 0
}

func (observer *IntersectionObserver) evaluate() {
	var entries []IntersectionEntry
	for _, target := range observer.targets {
		ratio := observer.window.IntersectionRatio(target.element)
		intersecting := ratio >= observer.threshold && ratio > 0
		if target.reported && intersecting == target.intersected {
			continue
		}
		target.reported = true
		target.intersected = intersecting
		entries = append(entries, IntersectionEntry{
			Target:         target.element,
			Ratio:          ratio,
			IsIntersecting: intersecting,
		})
	}
	if len(entries) == 0 || observer.callback == nil {
		return
	}
	observer.callback(entries, observer)
}
