package charts_test

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/qareport/internal/charts"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

func parsePage(testingT *testing.T, body string) *dom.Document {
	testingT.Helper()
	document, parseErr := dom.ParseString("<!DOCTYPE html><html><head></head><body>" + body + "</body></html>")
	require.NoError(testingT, parseErr)
	return document
}

func lineCanvas(attributes map[string]string) string {
	var builder strings.Builder
	builder.WriteString(`<canvas id="order-chart"`)
	for _, key := range []string{"labels", "executed", "opened", "closed"} {
		if value, present := attributes[key]; present {
			builder.WriteString(fmt.Sprintf(` data-%s='%s'`, key, value))
		}
	}
	builder.WriteString(`></canvas>`)
	return builder.String()
}

func TestLoadLineChartWellFormedAttributes(testingT *testing.T) {
	testCases := []struct {
		name       string
		attributes map[string]string
		labels     []string
		executed   []float64
	}{
		{
			name: "all attributes present",
			attributes: map[string]string{
				"labels":   `["w1","w2","w3"]`,
				"executed": `[10, 20, 30]`,
				"opened":   `[1, 2, 3]`,
				"closed":   `[0, 1, 2]`,
			},
			labels:   []string{"w1", "w2", "w3"},
			executed: []float64{10, 20, 30},
		},
		{
			name:       "no attributes",
			attributes: map[string]string{},
			labels:     charts.DefaultLineSpec().Labels,
			executed:   []float64{45, 62, 58, 45, 30, 18},
		},
		{
			name: "empty attribute takes its default",
			attributes: map[string]string{
				"labels":   charts.DefaultLineLabelsJSON,
				"executed": ``,
			},
			labels:   charts.DefaultLineSpec().Labels,
			executed: []float64{45, 62, 58, 45, 30, 18},
		},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			document := parsePage(testingT, lineCanvas(testCase.attributes))
			result := charts.NewLoader(zap.NewNop()).LoadLineChart(document)

			require.True(testingT, result.Capability.Applied)
			require.False(testingT, result.FallbackUsed)
			require.NoError(testingT, result.DecodeErr)
			require.Equal(testingT, charts.KindLine, result.Spec.Kind)
			require.Equal(testingT, testCase.labels, result.Spec.Labels)
			require.Equal(testingT, testCase.executed, result.Spec.Series[charts.SeriesExecuted])
			for _, name := range charts.LineSeriesOrder {
				require.Len(testingT, result.Spec.Series[name], len(result.Spec.Labels))
			}
			require.NoError(testingT, result.Spec.Validate())
		})
	}
}

func TestLoadLineChartFallsBackAsAWhole(testingT *testing.T) {
	wellFormed := map[string]string{
		"labels":   `["a","b"]`,
		"executed": `[1, 2]`,
		"opened":   `[3, 4]`,
		"closed":   `[5, 6]`,
	}
	malformedValues := []string{`[1, 2`, `not json`, `[1,]`, `["a" "b"]`}

	for _, key := range []string{"labels", "executed", "opened", "closed"} {
		for _, malformed := range malformedValues {
			testingT.Run(key+"/"+malformed, func(testingT *testing.T) {
				attributes := make(map[string]string, len(wellFormed))
				for attributeKey, value := range wellFormed {
					attributes[attributeKey] = value
				}
				attributes[key] = malformed

				observedCore, observedLogs := observer.New(zap.ErrorLevel)
				document := parsePage(testingT, lineCanvas(attributes))
				result := charts.NewLoader(zap.New(observedCore)).LoadLineChart(document)

				require.True(testingT, result.FallbackUsed)
				require.Error(testingT, result.DecodeErr)
				require.Equal(testingT, charts.DefaultLineSpec(), result.Spec)
				require.Equal(testingT, 1, observedLogs.FilterMessage("chart_data_parse_failed").Len())

				var attributeErr *charts.AttributeDecodeError
				require.ErrorAs(testingT, result.DecodeErr, &attributeErr)
				require.Equal(testingT, "data-"+key, attributeErr.Attribute)
			})
		}
	}
}

func TestLoadLineChartConvertsWellFormedValuesOfAnyType(testingT *testing.T) {
	testCases := []struct {
		name       string
		attributes map[string]string
		labels     []string
		executed   []float64
	}{
		{
			name:       "numeric labels",
			attributes: map[string]string{"labels": `[1, 2.5]`, "executed": `[1, 2]`},
			labels:     []string{"1", "2.5"},
			executed:   []float64{1, 2},
		},
		{
			name:       "numeric strings",
			attributes: map[string]string{"labels": `["a", "b", "c"]`, "executed": `["7", " 3.5 ", ""]`},
			labels:     []string{"a", "b", "c"},
			executed:   []float64{7, 3.5, 0},
		},
		{
			name:       "mixed labels",
			attributes: map[string]string{"labels": `[null, true, {"w":1}]`, "executed": `[1, 2, 3]`},
			labels:     []string{"", "true", `{"w":1}`},
			executed:   []float64{1, 2, 3},
		},
		{
			name:       "not an array",
			attributes: map[string]string{"labels": `{"a":1}`, "executed": `5`},
			labels:     []string{},
			executed:   []float64{},
		},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			result := charts.NewLoader(zap.NewNop()).LoadLineChart(parsePage(testingT, lineCanvas(testCase.attributes)))
			require.False(testingT, result.FallbackUsed)
			require.NoError(testingT, result.DecodeErr)
			require.Equal(testingT, testCase.labels, result.Spec.Labels)
			require.Equal(testingT, testCase.executed, result.Spec.Series[charts.SeriesExecuted])
		})
	}
}

func TestLoadLineChartKeepsNullAndNonNumericPointsAsGaps(testingT *testing.T) {
	document := parsePage(testingT, lineCanvas(map[string]string{
		"labels":   `["a", "b", "c"]`,
		"executed": `[1, null, "7px"]`,
	}))

	result := charts.NewLoader(zap.NewNop()).LoadLineChart(document)
	require.False(testingT, result.FallbackUsed)
	executed := result.Spec.Series[charts.SeriesExecuted]
	require.Len(testingT, executed, 3)
	require.Equal(testingT, 1.0, executed[0])
	require.True(testingT, math.IsNaN(executed[1]))
	require.True(testingT, math.IsNaN(executed[2]))
}

func TestLoadLineChartMissingElementIsNotApplicable(testingT *testing.T) {
	document := parsePage(testingT, `<canvas id="other"></canvas>`)
	result := charts.NewLoader(nil).LoadLineChart(document)

	require.False(testingT, result.Capability.Applied)
	require.Equal(testingT, charts.ModuleLineChartData, result.Capability.Module)
	require.NotEmpty(testingT, result.Capability.Reason)
	require.Nil(testingT, result.Element)
}

func TestLoadLineChartToleratesLengthMismatch(testingT *testing.T) {
	observedCore, observedLogs := observer.New(zap.WarnLevel)
	document := parsePage(testingT, lineCanvas(map[string]string{
		"labels":   `["a","b","c"]`,
		"executed": `[1, 2]`,
		"opened":   `[1, 2, 3]`,
		"closed":   `[1, 2, 3]`,
	}))

	result := charts.NewLoader(zap.New(observedCore)).LoadLineChart(document)
	require.False(testingT, result.FallbackUsed)
	require.Equal(testingT, []float64{1, 2}, result.Spec.Series[charts.SeriesExecuted])
	require.ErrorIs(testingT, result.Spec.Validate(), charts.ErrSeriesLengthMismatch)
	require.Equal(testingT, 1, observedLogs.FilterMessage("chart_series_length_mismatch").Len())
}

func TestLoadDoughnutChart(testingT *testing.T) {
	testCases := []struct {
		name         string
		markup       string
		values       []float64
		labels       []string
		fallbackUsed bool
	}{
		{
			name:   "attributes absent",
			markup: `<canvas id="test-status-chart"></canvas>`,
			values: []float64{50, 30, 15, 25},
			labels: []string{"Passed", "Failed", "Blocked", "In Progress"},
		},
		{
			name:   "attributes present",
			markup: `<canvas id="test-status-chart" data-values="[7, 3]" data-labels='["Passed","Failed"]'></canvas>`,
			values: []float64{7, 3},
			labels: []string{"Passed", "Failed"},
		},
		{
			name:   "numeric strings keep their values",
			markup: `<canvas id="test-status-chart" data-values='["7","3"]' data-labels='[1,2]'></canvas>`,
			values: []float64{7, 3},
			labels: []string{"1", "2"},
		},
		{
			name:         "malformed labels revert values too",
			markup:       `<canvas id="test-status-chart" data-values="[7, 3]" data-labels="[oops"></canvas>`,
			values:       []float64{50, 30, 15, 25},
			labels:       []string{"Passed", "Failed", "Blocked", "In Progress"},
			fallbackUsed: true,
		},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			result := charts.NewLoader(zap.NewNop()).LoadDoughnutChart(parsePage(testingT, testCase.markup))
			require.True(testingT, result.Capability.Applied)
			require.Equal(testingT, charts.KindDoughnut, result.Spec.Kind)
			require.Equal(testingT, testCase.values, result.Spec.Values())
			require.Equal(testingT, testCase.labels, result.Spec.Labels)
			require.Equal(testingT, testCase.fallbackUsed, result.FallbackUsed)
		})
	}
}

func TestLoadDoughnutChartMissingElementIsNotApplicable(testingT *testing.T) {
	result := charts.NewLoader(nil).LoadDoughnutChart(parsePage(testingT, ``))
	require.False(testingT, result.Capability.Applied)
	require.Equal(testingT, charts.ModuleDoughnutChartData, result.Capability.Module)
}
