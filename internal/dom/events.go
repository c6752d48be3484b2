package dom

// Event types dispatched by dashboard modules.
const (
	EventClick  = "click"
	EventChange = "change"
	EventInput  = "input"
	EventScroll = "scroll"
)

// Event is a bubbling DOM event.
type Event struct {
	Type    string
	Target  *Element
	stopped bool
}

// Listener handles an event.
type Listener func(*Event)

// NewEvent builds an event of the given type.
func NewEvent(eventType string) *Event {
	return &Event{Type: eventType}
}

// StopPropagation prevents the event from reaching ancestors and the document.
func (event *Event) StopPropagation() {
	event.stopped = true
}

// PropagationStopped reports whether a listener stopped propagation.
func (event *Event) PropagationStopped() bool {
	return event.stopped
}

// AddEventListener registers listener for eventType on element.
func (element *Element) AddEventListener(eventType string, listener Listener) {
	if listener == nil {
		return
	}
	element.listeners[eventType] = append(element.listeners[eventType], listener)
}

// ListenerCount reports how many listeners are attached for eventType.
func (element *Element) ListenerCount(eventType string) int {
	return len(element.listeners[eventType])
}

// Dispatch runs listeners on element, then bubbles through ancestors and finally
// the document unless a listener stops propagation.
func (element *Element) Dispatch(event *Event) {
	if event == nil {
		return
	}
	event.Target = element
	for current := element; current != nil; {
		for _, listener := range append([]Listener(nil), current.listeners[event.Type]...) {
			listener(event)
		}
		if event.stopped {
			return
		}
		parent, hasParent := current.Parent()
		if !hasParent {
			break
		}
		current = parent
	}
	element.document.runListeners(event)
}

// Click dispatches a click event on element.
func (element *Element) Click() {
	element.Dispatch(NewEvent(EventClick))
}
