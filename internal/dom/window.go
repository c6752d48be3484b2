package dom

import "math"

// DefaultViewportHeight matches the headless viewport used by the integration tests.
const DefaultViewportHeight = 720.0

// Rect is a vertical extent in CSS pixels. For layout it is relative to the top of
// the page; for bounding rectangles it is relative to the viewport.
type Rect struct {
	Top    float64
	Height float64
}

// Bottom returns Top + Height.
func (rect Rect) Bottom() float64 {
	return rect.Top + rect.Height
}

// Window is the viewport through which the document is seen.
type Window struct {
	document        *Document
	innerHeight     float64
	scrollY         float64
	scrollListeners []Listener
	observers       []*IntersectionObserver
}

func newWindow(document *Document) *Window {
	return &Window{document: document, innerHeight: DefaultViewportHeight}
}

// InnerHeight returns the viewport height.
func (window *Window) InnerHeight() float64 {
	return window.innerHeight
}

// ScrollY returns the vertical scroll offset.
func (window *Window) ScrollY() float64 {
	return window.scrollY
}

// Resize changes the viewport height and re-evaluates observers.
func (window *Window) Resize(innerHeight float64) {
	if innerHeight < 0 {
		innerHeight = 0
	}
	window.innerHeight = innerHeight
	window.notifyObservers()
}

// AddScrollListener registers a listener for scroll events.
func (window *Window) AddScrollListener(listener Listener) {
	if listener == nil {
		return
	}
	window.scrollListeners = append(window.scrollListeners, listener)
}

// ScrollTo moves the viewport, runs scroll listeners and re-evaluates observers.
func (window *Window) ScrollTo(offset float64) {
	if offset < 0 {
		offset = 0
	}
	window.scrollY = offset
	event := NewEvent(EventScroll)
	for _, listener := range append([]Listener(nil), window.scrollListeners...) {
		listener(event)
	}
	window.notifyObservers()
}

// BoundingClientRect returns element geometry relative to the viewport.
func (window *Window) BoundingClientRect(element *Element) Rect {
	layout := element.Layout()
	return Rect{Top: layout.Top - window.scrollY, Height: layout.Height}
}

// IntersectionRatio returns the fraction of element visible in the viewport. A
// zero-height element counts as fully visible when its top lies in the viewport.
func (window *Window) IntersectionRatio(element *Element) float64 {
	rect := window.BoundingClientRect(element)
	if rect.Height <= 0 {
		if rect.Top >= 0 && rect.Top <= window.innerHeight {
			return 1
		}
		return 0
	}
	visible := math.Min(rect.Bottom(), window.innerHeight) - math.Max(rect.Top, 0)
	if visible <= 0 {
		return 0
	}
	return math.Min(visible/rect.Height, 1)
}

func (window *Window) notifyObservers() {
	for _, observer := range append([]*IntersectionObserver(nil), window.observers...) {
		observer.evaluate()
	}
}

func (window *Window) attachObserver(observer *IntersectionObserver) {
	for _, existing := range window.observers {
		if existing == observer {
			return
		}
	}
	window.observers = append(window.observers, observer)
}

func (window *Window) detachObserver(observer *IntersectionObserver) {
	remaining := window.observers[:0]
	for _, existing := range window.observers {
		if existing != observer {
			remaining = append(remaining, existing)
		}
	}
	window.observers = remaining
}
