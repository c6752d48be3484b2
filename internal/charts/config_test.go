package charts_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/qareport/internal/charts"
)

func TestBuildLineConfig(testingT *testing.T) {
	config := charts.BuildLineConfig(charts.DefaultLineSpec())

	require.Equal(testingT, charts.KindLine, config.Type)
	require.Len(testingT, config.Data.Datasets, 3)
	expectedLabels := []string{charts.DatasetLabelExecuted, charts.DatasetLabelOpened, charts.DatasetLabelClosed}
	for index, dataset := range config.Data.Datasets {
		require.Equal(testingT, expectedLabels[index], dataset.Label)
		require.Equal(testingT, charts.DefaultLineSpec().Series[charts.LineSeriesOrder[index]], dataset.Data)
		require.False(testingT, dataset.Hidden)
		require.Equal(testingT, 0.3, dataset.Tension)
		require.True(testingT, dataset.Fill)

		gradient, isGradient := dataset.BackgroundColor.(*charts.Gradient)
		require.True(testingT, isGradient)
		require.Len(testingT, gradient.Stops, 2)
		require.Equal(testingT, float64(400), gradient.Y1)
	}
	require.Equal(testingT, "rgba(59, 130, 246, 0.5)", config.Data.Datasets[0].BackgroundColor.(*charts.Gradient).Stops[0].Color)
}

func TestBuildDoughnutConfig(testingT *testing.T) {
	config := charts.BuildDoughnutConfig(charts.DefaultDoughnutSpec())

	require.Equal(testingT, charts.KindDoughnut, config.Type)
	require.Equal(testingT, "75%", config.Options["cutout"])
	require.Len(testingT, config.Data.Datasets, 1)
	dataset := config.Data.Datasets[0]
	require.Equal(testingT, []float64{50, 30, 15, 25}, dataset.Data)

	encoded, encodeErr := json.Marshal(dataset)
	require.NoError(testingT, encodeErr)
	require.JSONEq(testingT, `{
		"data": [50, 30, 15, 25],
		"hidden": false,
		"borderColor": "white",
		"backgroundColor": ["rgb(16, 185, 129)", "rgb(244, 63, 94)", "rgb(249, 115, 22)", "rgb(59, 130, 246)"],
		"borderWidth": 2,
		"borderRadius": 4,
		"hoverBorderWidth": 0,
		"hoverOffset": 10
	}`, string(encoded))
}

func TestDatasetEncodesGapsAsNull(testingT *testing.T) {
	spec := charts.DefaultLineSpec()
	spec.Series[charts.SeriesExecuted] = []float64{1, math.NaN(), math.Inf(1), 4, 5, 6}

	encoded, encodeErr := json.Marshal(charts.BuildLineConfig(spec))
	require.NoError(testingT, encodeErr)

	var decoded struct {
		Data struct {
			Datasets []struct {
				Data []*float64 `json:"data"`
			} `json:"datasets"`
		} `json:"data"`
	}
	require.NoError(testingT, json.Unmarshal(encoded, &decoded))
	points := decoded.Data.Datasets[0].Data
	require.Len(testingT, points, 6)
	require.Equal(testingT, 1.0, *points[0])
	require.Nil(testingT, points[1])
	require.Nil(testingT, points[2])
	require.Equal(testingT, 4.0, *points[3])
}
