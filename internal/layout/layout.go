// Package layout loads page geometry for headless evaluation: the viewport, the
// position of elements that scroll and visibility behaviour depend on, and
// scripted scrolls to replay after the page boots.
package layout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	errorMessageReadLayout     = "layout: read file"
	errorMessageDecodeLayout   = "layout: decode"
	errorMessageInvalidLayout  = "layout: invalid"
	errorMessageInvalidPixels  = "layout: invalid pixel value"
	errorMessageEmptySelector  = "element selector is empty"
	errorMessageNegativeHeight = "element height is negative"
	errorMessageViewportHeight = "viewport height must be positive"
	errorMessageNegativeDelay  = "scroll delay is negative"
	pixelSuffix                = "px"
)

var (
	ErrInvalidLayout = errors.New(errorMessageInvalidLayout)
	ErrInvalidPixels = errors.New(errorMessageInvalidPixels)
)

// Pixels is a CSS pixel length. YAML accepts plain numbers and "px" strings.
type Pixels float64

func (pixels *Pixels) UnmarshalYAML(node *yaml.Node) error {
	if node == nil || node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: expected scalar", ErrInvalidPixels)
	}
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(node.Value), pixelSuffix))
	parsed, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPixels, node.Value)
	}
	*pixels = Pixels(parsed)
	return nil
}

// Viewport describes the browser window.
type Viewport struct {
	Height  Pixels `yaml:"height"`
	ScrollY Pixels `yaml:"scroll_y"`
}

// Placement positions every element matching Selector.
type Placement struct {
	Selector string `yaml:"selector"`
	Top      Pixels `yaml:"top"`
	Height   Pixels `yaml:"height"`
}

// ScrollStep scrolls the window to Y once After has elapsed since boot.
type ScrollStep struct {
	After time.Duration `yaml:"after"`
	Y     Pixels        `yaml:"y"`
}

// Layout is the geometry of one report page.
type Layout struct {
	Viewport Viewport     `yaml:"viewport"`
	Elements []Placement  `yaml:"elements"`
	Scroll   []ScrollStep `yaml:"scroll"`
}

// Default is the layout used when no file is configured: a 720 pixel viewport
// at the top of the page with every element at its origin.
func Default() Layout {
	return Layout{Viewport: Viewport{Height: dom.DefaultViewportHeight}}
}

// Load reads and validates a layout file.
func Load(path string) (Layout, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return Layout{}, fmt.Errorf("%s: %w", errorMessageReadLayout, openErr)
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes and validates a layout document. A missing viewport height
// takes the default.
func Parse(reader io.Reader) (Layout, error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	parsed := Default()
	if decodeErr := decoder.Decode(&parsed); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return Layout{}, fmt.Errorf("%s: %w", errorMessageDecodeLayout, decodeErr)
	}
	if validateErr := parsed.Validate(); validateErr != nil {
		return Layout{}, validateErr
	}
	return parsed, nil
}

// Validate reports the first inconsistency in the layout.
func (layout Layout) Validate() error {
	if layout.Viewport.Height <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLayout, errorMessageViewportHeight)
	}
	for index, placement := range layout.Elements {
		if strings.TrimSpace(placement.Selector) == "" {
			return fmt.Errorf("%w: elements[%d]: %s", ErrInvalidLayout, index, errorMessageEmptySelector)
		}
		if selectorErr := dom.ValidateSelector(placement.Selector); selectorErr != nil {
			return fmt.Errorf("%w: elements[%d]: %w", ErrInvalidLayout, index, selectorErr)
		}
		if placement.Height < 0 {
			return fmt.Errorf("%w: elements[%d]: %s", ErrInvalidLayout, index, errorMessageNegativeHeight)
		}
	}
	for index, step := range layout.Scroll {
		if step.After < 0 {
			return fmt.Errorf("%w: scroll[%d]: %s", ErrInvalidLayout, index, errorMessageNegativeDelay)
		}
	}
	return nil
}

// Apply sizes the window and positions matching elements. It returns how many
// elements were placed.
func (layout Layout) Apply(document *dom.Document) int {
	placed := 0
	for _, placement := range layout.Elements {
		for _, element := range document.QuerySelectorAll(placement.Selector) {
			element.SetLayout(dom.Rect{Top: float64(placement.Top), Height: float64(placement.Height)})
			placed++
		}
	}
	window := document.Window()
	window.Resize(float64(layout.Viewport.Height))
	window.ScrollTo(float64(layout.Viewport.ScrollY))
	return placed
}
