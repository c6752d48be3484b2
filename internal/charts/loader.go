package charts

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	ModuleLineChartData     = "line_chart_data"
	ModuleDoughnutChartData = "doughnut_chart_data"

	logEventChartDataParseFailed      = "chart_data_parse_failed"
	logEventChartSeriesLengthMismatch = "chart_series_length_mismatch"
	logEventChartDataNotArray         = "chart_data_not_array"
	logFieldChartAttribute            = "attribute"

	// LogFieldElement names the chart element id in log entries.
	LogFieldElement = "element"

	reasonElementMissing        = "chart element missing"
	errorMessageDecodeAttribute = "charts: decode attribute"
)

// LoadResult is the outcome of reading one chart element. Spec is always usable.
type LoadResult struct {
	Spec         ChartSpec
	Element      *dom.Element
	Capability   capability.Result
	FallbackUsed bool
	DecodeErr    error
}

// Loader reads chart data attributes. It never fails outward: decode problems
// are logged and replaced by the documented defaults.
type Loader struct {
	logger *zap.Logger
}

// NewLoader builds a Loader that reports decode failures to logger.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadLineChart reads the trend chart's labels and three series.
func (loader *Loader) LoadLineChart(document *dom.Document) LoadResult {
	element, found := document.ElementByID(LineChartElementID)
	if !found {
		return LoadResult{Capability: capability.NotApplicable(ModuleLineChartData, reasonElementMissing)}
	}

	spec := ChartSpec{Kind: KindLine, Series: make(map[string][]float64, len(LineSeriesOrder))}
	decodeErr := loader.decodeAll(element,
		stringField(attributeKeyLabels, DefaultLineLabelsJSON, &spec.Labels),
		numberField(attributeKeyExecuted, DefaultExecutedJSON, spec.Series, SeriesExecuted),
		numberField(attributeKeyOpened, DefaultOpenedJSON, spec.Series, SeriesOpened),
		numberField(attributeKeyClosed, DefaultClosedJSON, spec.Series, SeriesClosed),
	)
	return loader.finish(element, ModuleLineChartData, spec, DefaultLineSpec, decodeErr)
}

// LoadDoughnutChart reads the test status chart's values and labels.
func (loader *Loader) LoadDoughnutChart(document *dom.Document) LoadResult {
	element, found := document.ElementByID(DoughnutChartElementID)
	if !found {
		return LoadResult{Capability: capability.NotApplicable(ModuleDoughnutChartData, reasonElementMissing)}
	}

	spec := ChartSpec{Kind: KindDoughnut, Series: make(map[string][]float64, 1)}
	decodeErr := loader.decodeAll(element,
		numberField(attributeKeyValues, DefaultDoughnutValuesJSON, spec.Series, SeriesValues),
		stringField(attributeKeyLabels, DefaultDoughnutLabelsJSON, &spec.Labels),
	)
	return loader.finish(element, ModuleDoughnutChartData, spec, DefaultDoughnutSpec, decodeErr)
}

type attributeField struct {
	key         string
	defaultText string
	assign      func(items []any)
}

func stringField(key string, defaultText string, destination *[]string) attributeField {
	return attributeField{
		key:         key,
		defaultText: defaultText,
		assign: func(items []any) {
			labels := make([]string, len(items))
			for index, item := range items {
				labels[index] = labelText(item)
			}
			*destination = labels
		},
	}
}

func numberField(key string, defaultText string, series map[string][]float64, name string) attributeField {
	return attributeField{
		key:         key,
		defaultText: defaultText,
		assign: func(items []any) {
			values := make([]float64, len(items))
			for index, item := range items {
				values[index] = pointValue(item)
			}
			series[name] = values
		},
	}
}

// decodeAll decodes fields in order inside one scope: the first syntax error
// aborts the rest. Well-formed text that is not an array yields an empty
// sequence.
func (loader *Loader) decodeAll(element *dom.Element, fields ...attributeField) error {
	for _, field := range fields {
		raw, present := element.Data(field.key)
		if !present || raw == "" {
			raw = field.defaultText
		}
		var decoded any
		if decodeErr := json.Unmarshal([]byte(raw), &decoded); decodeErr != nil {
			return &AttributeDecodeError{Attribute: "data-" + field.key, Err: decodeErr}
		}
		items, isArray := decoded.([]any)
		if !isArray {
			loader.logger.Warn(logEventChartDataNotArray,
				zap.String(LogFieldElement, element.ID()),
				zap.String(logFieldChartAttribute, "data-"+field.key),
			)
		}
		field.assign(items)
	}
	return nil
}

// labelText renders a decoded label the way the chart axis prints it.
func labelText(item any) string {
	switch typed := item.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return FormatNumber(typed)
	case bool:
		return strconv.FormatBool(typed)
	default:
		encoded, _ := json.Marshal(typed)
		return string(encoded)
	}
}

// pointValue converts a decoded data point to a number. Null and anything
// without a numeric reading become NaN, which the chart draws as a gap.
func pointValue(item any) float64 {
	switch typed := item.(type) {
	case float64:
		return typed
	case string:
		return NumberFromText(typed)
	case bool:
		if typed {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

func (loader *Loader) finish(element *dom.Element, module string, spec ChartSpec, defaults func() ChartSpec, decodeErr error) LoadResult {
	result := LoadResult{
		Spec:       spec,
		Element:    element,
		Capability: capability.Applied(module),
	}
	if decodeErr != nil {
		var attributeErr *AttributeDecodeError
		attributeName := ""
		if errors.As(decodeErr, &attributeErr) {
			attributeName = attributeErr.Attribute
		}
		loader.logger.Error(logEventChartDataParseFailed,
			zap.String(LogFieldElement, element.ID()),
			zap.String(logFieldChartAttribute, attributeName),
			zap.Error(decodeErr),
		)
		result.Spec = defaults()
		result.FallbackUsed = true
		result.DecodeErr = decodeErr
		return result
	}
	if validationErr := spec.Validate(); validationErr != nil {
		loader.logger.Warn(logEventChartSeriesLengthMismatch,
			zap.String(LogFieldElement, element.ID()),
			zap.Error(validationErr),
		)
	}
	return result
}

// AttributeDecodeError names the attribute whose text failed to decode.
type AttributeDecodeError struct {
	Attribute string
	Err       error
}

func (decodeErr *AttributeDecodeError) Error() string {
	return fmt.Sprintf("%s %s: %v", errorMessageDecodeAttribute, decodeErr.Attribute, decodeErr.Err)
}

func (decodeErr *AttributeDecodeError) Unwrap() error {
	return decodeErr.Err
}
