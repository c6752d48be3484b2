package dom_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const lazyChartMarkup = `<html><body><section class="lazy-chart" id="trend"></section></body></html>`

func buildLazyChartDocument(testingT *testing.T, layout dom.Rect) (*dom.Document, *dom.Element) {
	testingT.Helper()
	document, parseErr := dom.ParseString(lazyChartMarkup)
	require.NoError(testingT, parseErr)
	section, found := document.ElementByID("trend")
	require.True(testingT, found)
	section.SetLayout(layout)
	return document, section
}

func TestIntersectionRatio(testingT *testing.T) {
	testCases := []struct {
		name          string
		layout        dom.Rect
		scrollY       float64
		expectedRatio float64
	}{
		{name: "fully visible", layout: dom.Rect{Top: 100, Height: 200}, expectedRatio: 1},
		{name: "below fold", layout: dom.Rect{Top: 1000, Height: 200}, expectedRatio: 0},
		{name: "partially visible", layout: dom.Rect{Top: 620, Height: 400}, expectedRatio: 0.25},
		{name: "scrolled into view", layout: dom.Rect{Top: 1000, Height: 200}, scrollY: 600, expectedRatio: 1},
		{name: "scrolled past", layout: dom.Rect{Top: 0, Height: 100}, scrollY: 500, expectedRatio: 0},
		{name: "zero height in view", layout: dom.Rect{Top: 10}, expectedRatio: 1},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			document, section := buildLazyChartDocument(testingT, testCase.layout)
			document.Window().ScrollTo(testCase.scrollY)
			require.InDelta(testingT, testCase.expectedRatio, document.Window().IntersectionRatio(section), 0.0001)
		})
	}
}

func TestScrollListenersRunOnScroll(testingT *testing.T) {
	document, _ := buildLazyChartDocument(testingT, dom.Rect{})
	scrolls := 0
	document.Window().AddScrollListener(func(event *dom.Event) {
		require.Equal(testingT, dom.EventScroll, event.Type)
		scrolls++
	})
	document.Window().ScrollTo(50)
	document.Window().ScrollTo(-10)
	require.Equal(testingT, 2, scrolls)
	require.Zero(testingT, document.Window().ScrollY())
}

func TestObserverReportsInitialStateAndCrossings(testingT *testing.T) {
	document, section := buildLazyChartDocument(testingT, dom.Rect{Top: 1000, Height: 200})

	var delivered []dom.IntersectionEntry
	observer := document.Window().NewIntersectionObserver(0.2, func(entries []dom.IntersectionEntry, _ *dom.IntersectionObserver) {
		delivered = append(delivered, entries...)
	})
	observer.Observe(section)
	require.Len(testingT, delivered, 1)
	require.False(testingT, delivered[0].IsIntersecting)

	document.Window().ScrollTo(100)
	require.Len(testingT, delivered, 1)

	// 40px of 200px visible: ratio 0.2 meets the threshold.
	document.Window().ScrollTo(320)
	require.Len(testingT, delivered, 2)
	require.True(testingT, delivered[1].IsIntersecting)
	require.InDelta(testingT, 0.2, delivered[1].Ratio, 0.0001)

	document.Window().ScrollTo(400)
	require.Len(testingT, delivered, 2)

	observer.Unobserve(section)
	require.False(testingT, observer.Active())
	document.Window().ScrollTo(0)
	document.Window().ScrollTo(600)
	require.Len(testingT, delivered, 2)
}

func TestObserverCallbackMayUnobserveItself(testingT *testing.T) {
	document, section := buildLazyChartDocument(testingT, dom.Rect{Top: 0, Height: 100})
	calls := 0
	observer := document.Window().NewIntersectionObserver(0.2, func(entries []dom.IntersectionEntry, observer *dom.IntersectionObserver) {
		calls++
		for _, entry := range entries {
			observer.Unobserve(entry.Target)
		}
	})
	observer.Observe(section)
	require.Equal(testingT, 1, calls)
	require.False(testingT, observer.Observing(section))

	document.Window().Resize(10)
	document.Window().Resize(720)
	require.Equal(testingT, 1, calls)
}
