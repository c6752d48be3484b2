package dom

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	attributeID       = "id"
	attributeClass    = "class"
	attributeStyle    = "style"
	attributeChecked  = "checked"
	attributeValueKey = "value"
	attributeType     = "type"
	dataPrefix        = "data-"
)

// Element is a mutable handle on one element node. Handles are cached per node,
// so listeners and layout survive repeated lookups.
type Element struct {
	document  *Document
	node      *html.Node
	listeners map[string][]Listener
	layout    Rect
}

// Node exposes the underlying parse tree node.
func (element *Element) Node() *html.Node {
	return element.node
}

// OwnerDocument returns the document the element belongs to.
func (element *Element) OwnerDocument() *Document {
	return element.document
}

// TagName returns the lower-case tag name.
func (element *Element) TagName() string {
	return element.node.Data
}

// ID returns the id attribute or an empty string.
func (element *Element) ID() string {
	return attributeValue(element.node, attributeID)
}

// Attribute returns the attribute value and whether it is present.
func (element *Element) Attribute(name string) (string, bool) {
	normalized := strings.ToLower(name)
	for _, attribute := range element.node.Attr {
		if attribute.Namespace == "" && attribute.Key == normalized {
			return attribute.Val, true
		}
	}
	return "", false
}

// HasAttribute reports whether the attribute is present.
func (element *Element) HasAttribute(name string) bool {
	_, present := element.Attribute(name)
	return present
}

// SetAttribute sets or replaces an attribute.
func (element *Element) SetAttribute(name string, value string) {
	normalized := strings.ToLower(name)
	for index := range element.node.Attr {
		if element.node.Attr[index].Namespace == "" && element.node.Attr[index].Key == normalized {
			element.node.Attr[index].Val = value
			return
		}
	}
	element.node.Attr = append(element.node.Attr, html.Attribute{Key: normalized, Val: value})
}

// RemoveAttribute deletes an attribute if present.
func (element *Element) RemoveAttribute(name string) {
	normalized := strings.ToLower(name)
	kept := element.node.Attr[:0]
	for _, attribute := range element.node.Attr {
		if attribute.Namespace == "" && attribute.Key == normalized {
			continue
		}
		kept = append(kept, attribute)
	}
	element.node.Attr = kept
}

// Data reads a data-* attribute. Keys may be given in dataset form ("coverage",
// "labels") or already hyphenated.
func (element *Element) Data(key string) (string, bool) {
	return element.Attribute(dataPrefix + datasetKeyToAttribute(key))
}

// SetData writes a data-* attribute.
func (element *Element) SetData(key string, value string) {
	element.SetAttribute(dataPrefix+datasetKeyToAttribute(key), value)
}

// Classes returns the class list.
func (element *Element) Classes() []string {
	value, _ := element.Attribute(attributeClass)
	return strings.Fields(value)
}

// HasClass reports whether the class list contains name.
func (element *Element) HasClass(name string) bool {
	for _, className := range element.Classes() {
		if className == name {
			return true
		}
	}
	return false
}

// AddClass appends name to the class list when missing.
func (element *Element) AddClass(name string) {
	if element.HasClass(name) {
		return
	}
	element.SetAttribute(attributeClass, strings.Join(append(element.Classes(), name), " "))
}

// RemoveClass drops name from the class list.
func (element *Element) RemoveClass(name string) {
	if !element.HasClass(name) {
		return
	}
	remaining := make([]string, 0, len(element.Classes()))
	for _, className := range element.Classes() {
		if className != name {
			remaining = append(remaining, className)
		}
	}
	element.SetAttribute(attributeClass, strings.Join(remaining, " "))
}

// ToggleClass flips name and reports whether it is now present.
func (element *Element) ToggleClass(name string) bool {
	if element.HasClass(name) {
		element.RemoveClass(name)
		return false
	}
	element.AddClass(name)
	return true
}

// Style returns one inline style property.
func (element *Element) Style(property string) string {
	for _, declaration := range element.styleDeclarations() {
		if declaration.property == strings.ToLower(property) {
			return declaration.value
		}
	}
	return ""
}

// SetStyle writes one inline style property; an empty value removes it.
func (element *Element) SetStyle(property string, value string) {
	normalized := strings.ToLower(strings.TrimSpace(property))
	declarations := element.styleDeclarations()
	updated := make([]styleDeclaration, 0, len(declarations)+1)
	replaced := false
	for _, declaration := range declarations {
		if declaration.property != normalized {
			updated = append(updated, declaration)
			continue
		}
		replaced = true
		if value != "" {
			updated = append(updated, styleDeclaration{property: normalized, value: value})
		}
	}
	if !replaced && value != "" {
		updated = append(updated, styleDeclaration{property: normalized, value: value})
	}
	if len(updated) == 0 {
		element.RemoveAttribute(attributeStyle)
		return
	}
	serialized := make([]string, 0, len(updated))
	for _, declaration := range updated {
		serialized = append(serialized, declaration.property+": "+declaration.value)
	}
	element.SetAttribute(attributeStyle, strings.Join(serialized, "; ")+";")
}

// TextContent concatenates all descendant text.
func (element *Element) TextContent() string {
	var builder strings.Builder
	var collect func(*html.Node)
	collect = func(current *html.Node) {
		if current.Type == html.TextNode {
			builder.WriteString(current.Data)
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(element.node)
	return builder.String()
}

// SetTextContent replaces all children with a single text node.
func (element *Element) SetTextContent(text string) {
	for child := element.node.FirstChild; child != nil; {
		next := child.NextSibling
		element.node.RemoveChild(child)
		child = next
	}
	if text == "" {
		return
	}
	element.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Checked mirrors the checked attribute of form controls.
func (element *Element) Checked() bool {
	return element.HasAttribute(attributeChecked)
}

// SetChecked sets or clears the checked attribute.
func (element *Element) SetChecked(checked bool) {
	if checked {
		element.SetAttribute(attributeChecked, "")
		return
	}
	element.RemoveAttribute(attributeChecked)
}

// Value returns the value attribute.
func (element *Element) Value() string {
	value, _ := element.Attribute(attributeValueKey)
	return value
}

// SetValue writes the value attribute.
func (element *Element) SetValue(value string) {
	element.SetAttribute(attributeValueKey, value)
}

// Type returns the type attribute.
func (element *Element) Type() string {
	value, _ := element.Attribute(attributeType)
	return value
}

// Parent returns the parent element, if any.
func (element *Element) Parent() (*Element, bool) {
	parent := element.node.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return nil, false
	}
	return element.document.wrap(parent), true
}

// Children returns the element children in order.
func (element *Element) Children() []*Element {
	var children []*Element
	for child := element.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			children = append(children, element.document.wrap(child))
		}
	}
	return children
}

// AppendChild attaches child as the last child, detaching it first if needed.
func (element *Element) AppendChild(child *Element) {
	if child == nil {
		return
	}
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	element.node.AppendChild(child.node)
}

// InsertAfter attaches sibling directly after element.
func (element *Element) InsertAfter(sibling *Element) {
	if sibling == nil || element.node.Parent == nil {
		return
	}
	if sibling.node.Parent != nil {
		sibling.node.Parent.RemoveChild(sibling.node)
	}
	element.node.Parent.InsertBefore(sibling.node, element.node.NextSibling)
}

// Remove detaches element from its parent.
func (element *Element) Remove() {
	if element.node.Parent == nil {
		return
	}
	element.node.Parent.RemoveChild(element.node)
}

// Connected reports whether the element is still attached to the document tree.
func (element *Element) Connected() bool {
	for current := element.node; current != nil; current = current.Parent {
		if current == element.document.root {
			return true
		}
	}
	return false
}

// QuerySelector returns the first descendant matching selector.
func (element *Element) QuerySelector(selector string) (*Element, bool) {
	return element.querySelector(selector, false)
}

// QuerySelectorAll returns every descendant matching selector.
func (element *Element) QuerySelectorAll(selector string) []*Element {
	return element.querySelectorAll(selector, false)
}

// SetLayout records the element's page geometry.
func (element *Element) SetLayout(rect Rect) {
	element.layout = rect
}

// Layout returns the element's page geometry.
func (element *Element) Layout() Rect {
	return element.layout
}

func (element *Element) querySelector(selector string, includeSelf bool) (*Element, bool) {
	matches := element.querySelectorAll(selector, includeSelf)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

func (element *Element) querySelectorAll(selector string, includeSelf bool) []*Element {
	group, parseErr := compileSelector(selector)
	if parseErr != nil {
		return nil
	}
	nodes := matchSelector(element.node, group, includeSelf)
	matches := make([]*Element, 0, len(nodes))
	for _, node := range nodes {
		matches = append(matches, element.document.wrap(node))
	}
	return matches
}

type styleDeclaration struct {
	property string
	value    string
}

func (element *Element) styleDeclarations() []styleDeclaration {
	raw, _ := element.Attribute(attributeStyle)
	var declarations []styleDeclaration
	for _, segment := range strings.Split(raw, ";") {
		property, value, found := strings.Cut(segment, ":")
		if !found {
			continue
		}
		property = strings.ToLower(strings.TrimSpace(property))
		if property == "" {
			continue
		}
		declarations = append(declarations, styleDeclaration{property: property, value: strings.TrimSpace(value)})
	}
	return declarations
}

func attributeValue(node *html.Node, name string) string {
	for _, attribute := range node.Attr {
		if attribute.Namespace == "" && attribute.Key == name {
			return attribute.Val
		}
	}
	return ""
}

// datasetKeyToAttribute converts camelCase dataset keys to hyphenated attribute
// suffixes ("progressCount" -> "progress-count").
func datasetKeyToAttribute(key string) string {
	var builder strings.Builder
	for _, character := range key {
		if character >= 'A' && character <= 'Z' {
			builder.WriteByte('-')
			builder.WriteRune(character + ('a' - 'A'))
			continue
		}
		builder.WriteRune(character)
	}
	return builder.String()
}
