package charts

// Element ids and data attributes read from the report page.
const (
	LineChartElementID     = "order-chart"
	DoughnutChartElementID = "test-status-chart"

	attributeKeyLabels   = "labels"
	attributeKeyExecuted = "executed"
	attributeKeyOpened   = "opened"
	attributeKeyClosed   = "closed"
	attributeKeyValues   = "values"
)

// Default literals substituted for missing attributes. They are decoded exactly
// like attribute text.
const (
	DefaultLineLabelsJSON     = `["2025-02-03", "2025-02-10", "2025-02-17", "2025-02-24", "2025-03-03", "2025-03-10"]`
	DefaultExecutedJSON       = `[45, 62, 58, 45, 30, 18]`
	DefaultOpenedJSON         = `[2, 3, 4, 3, 2, 0]`
	DefaultClosedJSON         = `[0, 1, 1, 1, 2, 3]`
	DefaultDoughnutValuesJSON = `[50, 30, 15, 25]`
	DefaultDoughnutLabelsJSON = `["Passed", "Failed", "Blocked", "In Progress"]`
)

// DefaultLineSpec is the line chart used when any attribute fails to decode.
func DefaultLineSpec() ChartSpec {
	return ChartSpec{
		Kind:   KindLine,
		Labels: []string{"2025-02-03", "2025-02-10", "2025-02-17", "2025-02-24", "2025-03-03", "2025-03-10"},
		Series: map[string][]float64{
			SeriesExecuted: {45, 62, 58, 45, 30, 18},
			SeriesOpened:   {2, 3, 4, 3, 2, 0},
			SeriesClosed:   {0, 1, 1, 1, 2, 3},
		},
	}
}

// DefaultDoughnutSpec is the doughnut chart used when any attribute fails to decode.
func DefaultDoughnutSpec() ChartSpec {
	return ChartSpec{
		Kind:   KindDoughnut,
		Labels: []string{"Passed", "Failed", "Blocked", "In Progress"},
		Series: map[string][]float64{
			SeriesValues: {50, 30, 15, 25},
		},
	}
}
