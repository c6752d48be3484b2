package dom

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const errorMessageInvalidSelector = "dom: invalid selector"

// ErrInvalidSelector indicates a selector that does not parse as a CSS
// selector group.
var ErrInvalidSelector = errors.New(errorMessageInvalidSelector)

// ValidateSelector reports whether raw parses as a CSS selector group.
func ValidateSelector(raw string) error {
	_, parseErr := compileSelector(raw)
	return parseErr
}

func compileSelector(raw string) (cascadia.SelectorGroup, error) {
	group, parseErr := cascadia.ParseGroup(raw)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, raw, parseErr)
	}
	return group, nil
}

// matchSelector returns the elements under scope matching group in document
// order, scope itself first when includeSelf is set.
func matchSelector(scope *html.Node, group cascadia.SelectorGroup, includeSelf bool) []*html.Node {
	var matches []*html.Node
	if includeSelf && scope.Type == html.ElementNode && group.Match(scope) {
		matches = append(matches, scope)
	}
	return append(matches, cascadia.QueryAll(scope, group)...)
}
