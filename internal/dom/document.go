// Package dom is a small mutable document model over golang.org/x/net/html. It
// gives dashboard modules the element lookups, attribute plumbing, events and
// viewport geometry they need to run without a browser.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	errorMessageParseDocument  = "dom: parse document"
	errorMessageRenderDocument = "dom: render document"
	errorMessageMissingRoot    = "dom: document has no root element"
)

// ErrMissingRoot indicates the parsed markup produced no <html> element.
var ErrMissingRoot = errors.New(errorMessageMissingRoot)

// Document wraps a parsed HTML tree.
type Document struct {
	root      *html.Node
	elements  map[*html.Node]*Element
	listeners map[string][]Listener
	window    *Window
}

// Parse reads HTML markup into a Document.
func Parse(reader io.Reader) (*Document, error) {
	root, parseErr := html.Parse(reader)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageParseDocument, parseErr)
	}
	document := &Document{
		root:      root,
		elements:  make(map[*html.Node]*Element),
		listeners: make(map[string][]Listener),
	}
	if document.findFirst(func(node *html.Node) bool { return node.DataAtom == atom.Html }) == nil {
		return nil, ErrMissingRoot
	}
	document.window = newWindow(document)
	return document, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Window returns the viewport attached to the document.
func (document *Document) Window() *Window {
	return document.window
}

// DocumentElement returns the <html> element.
func (document *Document) DocumentElement() *Element {
	node := document.findFirst(func(node *html.Node) bool { return node.DataAtom == atom.Html })
	return document.wrap(node)
}

// Body returns the <body> element.
func (document *Document) Body() (*Element, bool) {
	node := document.findFirst(func(node *html.Node) bool { return node.DataAtom == atom.Body })
	if node == nil {
		return nil, false
	}
	return document.wrap(node), true
}

// ElementByID returns the first element whose id attribute equals id.
func (document *Document) ElementByID(id string) (*Element, bool) {
	if id == "" {
		return nil, false
	}
	node := document.findFirst(func(node *html.Node) bool {
		return node.Type == html.ElementNode && attributeValue(node, attributeID) == id
	})
	if node == nil {
		return nil, false
	}
	return document.wrap(node), true
}

// QuerySelector returns the first element matching selector in document order.
func (document *Document) QuerySelector(selector string) (*Element, bool) {
	return document.DocumentElement().querySelector(selector, true)
}

// QuerySelectorAll returns every element matching selector in document order.
func (document *Document) QuerySelectorAll(selector string) []*Element {
	return document.DocumentElement().querySelectorAll(selector, true)
}

// CreateElement returns a detached element with the given tag name.
func (document *Document) CreateElement(tagName string) *Element {
	normalized := strings.ToLower(strings.TrimSpace(tagName))
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     normalized,
		DataAtom: atom.Lookup([]byte(normalized)),
	}
	return document.wrap(node)
}

// AddEventListener registers a listener that runs after element listeners for
// events that bubble up to the document.
func (document *Document) AddEventListener(eventType string, listener Listener) {
	if listener == nil {
		return
	}
	document.listeners[eventType] = append(document.listeners[eventType], listener)
}

// Dispatch delivers a document-level event (e.g. a click on empty page space).
func (document *Document) Dispatch(event *Event) {
	if event == nil {
		return
	}
	document.runListeners(event)
}

// Render serializes the current tree.
func (document *Document) Render(writer io.Writer) error {
	if renderErr := html.Render(writer, document.root); renderErr != nil {
		return fmt.Errorf("%s: %w", errorMessageRenderDocument, renderErr)
	}
	return nil
}

// String renders the document to a string, returning an empty string on failure.
func (document *Document) String() string {
	var buffer bytes.Buffer
	if renderErr := document.Render(&buffer); renderErr != nil {
		return ""
	}
	return buffer.String()
}

func (document *Document) runListeners(event *Event) {
	if event.stopped {
		return
	}
	for _, listener := range append([]Listener(nil), document.listeners[event.Type]...) {
		listener(event)
	}
}

func (document *Document) wrap(node *html.Node) *Element {
	if node == nil {
		return nil
	}
	if element, exists := document.elements[node]; exists {
		return element
	}
	element := &Element{
		document:  document,
		node:      node,
		listeners: make(map[string][]Listener),
	}
	document.elements[node] = element
	return element
}

func (document *Document) findFirst(predicate func(*html.Node) bool) *html.Node {
	var found *html.Node
	var traverse func(*html.Node)
	traverse = func(current *html.Node) {
		if current == nil || found != nil {
			return
		}
		if current.Type == html.ElementNode && predicate(current) {
			found = current
			return
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			traverse(child)
		}
	}
	traverse(document.root)
	return found
}
