// Package charts turns the chart data embedded in a QA report page into chart
// specifications, Chart.js configurations and live chart instances.
package charts

import (
	"errors"
	"fmt"
)

// Kind is the chart type.
type Kind string

const (
	KindLine     Kind = "line"
	KindDoughnut Kind = "doughnut"
)

// Line chart series names, in dataset order.
const (
	SeriesExecuted = "executed"
	SeriesOpened   = "opened"
	SeriesClosed   = "closed"
	// SeriesValues is the single unnamed doughnut sequence.
	SeriesValues = ""
)

// LineSeriesOrder lists the line chart series in dataset order.
var LineSeriesOrder = []string{SeriesExecuted, SeriesOpened, SeriesClosed}

const errorMessageSeriesLengthMismatch = "charts: series length does not match labels length"

// ErrSeriesLengthMismatch reports a series whose length differs from the labels.
var ErrSeriesLengthMismatch = errors.New(errorMessageSeriesLengthMismatch)

// ChartSpec is the data of one chart element.
type ChartSpec struct {
	Kind   Kind
	Labels []string
	Series map[string][]float64
}

// Values returns the doughnut chart's sequence.
func (spec ChartSpec) Values() []float64 {
	return spec.Series[SeriesValues]
}

// SeriesNames returns the series names in dataset order.
func (spec ChartSpec) SeriesNames() []string {
	if spec.Kind == KindLine {
		return LineSeriesOrder
	}
	return []string{SeriesValues}
}

// Validate reports the first series whose length differs from the labels length.
func (spec ChartSpec) Validate() error {
	for _, name := range spec.SeriesNames() {
		series := spec.Series[name]
		if len(series) != len(spec.Labels) {
			return fmt.Errorf("%w: %s chart series %q has %d values for %d labels",
				ErrSeriesLengthMismatch, spec.Kind, name, len(series), len(spec.Labels))
		}
	}
	return nil
}
