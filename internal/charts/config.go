package charts

import (
	"encoding/json"
	"math"
)

// Dataset labels shown in the line chart legend.
const (
	DatasetLabelExecuted = "Test Cases Executed"
	DatasetLabelOpened   = "Defects Opened"
	DatasetLabelClosed   = "Defects Closed"
)

const (
	colorBlue   = "rgb(59, 130, 246)"
	colorRed    = "rgb(244, 63, 94)"
	colorGreen  = "rgb(16, 185, 129)"
	colorOrange = "rgb(249, 115, 22)"
	colorWhite  = "rgb(255, 255, 255)"

	gradientHeight = 400
)

// Config is a Chart.js chart configuration.
type Config struct {
	Type    Kind           `json:"type"`
	Data    Data           `json:"data"`
	Options map[string]any `json:"options"`
}

// Data holds the chart labels and datasets.
type Data struct {
	Labels   []string   `json:"labels"`
	Datasets []*Dataset `json:"datasets"`
}

// Dataset is one Chart.js dataset. BackgroundColor holds a color string, a
// color list or a *Gradient.
type Dataset struct {
	Label                     string    `json:"label,omitempty"`
	Data                      []float64 `json:"data"`
	Hidden                    bool      `json:"hidden"`
	BorderColor               string    `json:"borderColor,omitempty"`
	BackgroundColor           any       `json:"backgroundColor,omitempty"`
	BorderWidth               int       `json:"borderWidth,omitempty"`
	BorderRadius              int       `json:"borderRadius,omitempty"`
	PointBackgroundColor      string    `json:"pointBackgroundColor,omitempty"`
	PointBorderColor          string    `json:"pointBorderColor,omitempty"`
	PointBorderWidth          int       `json:"pointBorderWidth,omitempty"`
	PointRadius               int       `json:"pointRadius,omitempty"`
	PointHoverRadius          int       `json:"pointHoverRadius,omitempty"`
	PointHoverBackgroundColor string    `json:"pointHoverBackgroundColor,omitempty"`
	PointHoverBorderColor     string    `json:"pointHoverBorderColor,omitempty"`
	HoverBorderWidth          *int      `json:"hoverBorderWidth,omitempty"`
	HoverOffset               int       `json:"hoverOffset,omitempty"`
	Tension                   float64   `json:"tension,omitempty"`
	Fill                      bool      `json:"fill,omitempty"`
}

// MarshalJSON writes NaN and infinite points as null, the gap value the chart
// library skips.
func (dataset Dataset) MarshalJSON() ([]byte, error) {
	type plainDataset Dataset
	var points []*float64
	if dataset.Data != nil {
		points = make([]*float64, len(dataset.Data))
		for index := range dataset.Data {
			if value := dataset.Data[index]; !math.IsNaN(value) && !math.IsInf(value, 0) {
				points[index] = &dataset.Data[index]
			}
		}
	}
	return json.Marshal(struct {
		plainDataset
		Data []*float64 `json:"data"`
	}{plainDataset: plainDataset(dataset), Data: points})
}

// Gradient is a vertical linear gradient in canvas coordinates.
type Gradient struct {
	X0    float64     `json:"x0"`
	Y0    float64     `json:"y0"`
	X1    float64     `json:"x1"`
	Y1    float64     `json:"y1"`
	Stops []ColorStop `json:"stops"`
}

// ColorStop is one gradient stop.
type ColorStop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

func fadingGradient(red int, green int, blue int) *Gradient {
	return &Gradient{
		Y1: gradientHeight,
		Stops: []ColorStop{
			{Offset: 0, Color: rgba(red, green, blue, "0.5")},
			{Offset: 1, Color: rgba(red, green, blue, "0.0")},
		},
	}
}

func rgba(red int, green int, blue int, alpha string) string {
	return "rgba(" + FormatNumber(float64(red)) + ", " + FormatNumber(float64(green)) + ", " +
		FormatNumber(float64(blue)) + ", " + alpha + ")"
}

func lineDataset(label string, data []float64, color string, gradient *Gradient) *Dataset {
	return &Dataset{
		Label:                     label,
		Data:                      data,
		BorderColor:               color,
		BackgroundColor:           gradient,
		BorderWidth:               2,
		PointBackgroundColor:      colorWhite,
		PointBorderColor:          color,
		PointBorderWidth:          2,
		PointRadius:               4,
		PointHoverRadius:          6,
		PointHoverBackgroundColor: color,
		PointHoverBorderColor:     colorWhite,
		Tension:                   0.3,
		Fill:                      true,
	}
}

// BuildLineConfig builds the trend chart configuration. Datasets follow
// LineSeriesOrder.
func BuildLineConfig(spec ChartSpec) *Config {
	return &Config{
		Type: KindLine,
		Data: Data{
			Labels: spec.Labels,
			Datasets: []*Dataset{
				lineDataset(DatasetLabelExecuted, spec.Series[SeriesExecuted], colorBlue, fadingGradient(59, 130, 246)),
				lineDataset(DatasetLabelOpened, spec.Series[SeriesOpened], colorRed, fadingGradient(244, 63, 94)),
				lineDataset(DatasetLabelClosed, spec.Series[SeriesClosed], colorGreen, fadingGradient(16, 185, 129)),
			},
		},
		Options: lineOptions(),
	}
}

// BuildDoughnutConfig builds the test status chart configuration.
func BuildDoughnutConfig(spec ChartSpec) *Config {
	hoverBorderWidth := 0
	return &Config{
		Type: KindDoughnut,
		Data: Data{
			Labels: spec.Labels,
			Datasets: []*Dataset{
				{
					Data:             spec.Values(),
					BackgroundColor:  []string{colorGreen, colorRed, colorOrange, colorBlue},
					BorderColor:      "white",
					BorderWidth:      2,
					HoverBorderWidth: &hoverBorderWidth,
					HoverOffset:      10,
					BorderRadius:     4,
				},
			},
		},
		Options: doughnutOptions(),
	}
}

func tickFont() map[string]any {
	return map[string]any{"size": 11}
}

func tooltipOptions() map[string]any {
	return map[string]any{
		"backgroundColor": "rgba(0, 0, 0, 0.8)",
		"titleFont":       map[string]any{"size": 13, "weight": "bold"},
		"bodyFont":        map[string]any{"size": 12},
		"padding":         12,
		"cornerRadius":    8,
		"usePointStyle":   true,
	}
}

func lineOptions() map[string]any {
	tooltip := tooltipOptions()
	tooltip["bodySpacing"] = 6
	tooltip["borderColor"] = "rgba(255, 255, 255, 0.3)"
	tooltip["borderWidth"] = 1
	tooltip["boxPadding"] = 4

	return map[string]any{
		"responsive":          true,
		"maintainAspectRatio": false,
		"interaction":         map[string]any{"mode": "index", "intersect": false},
		"hover":               map[string]any{"mode": "nearest", "intersect": true},
		"animations": map[string]any{
			"tension": map[string]any{
				"duration": 1000,
				"easing":   "linear",
				"from":     0.4,
				"to":       0.3,
				"loop":     false,
			},
		},
		"scales": map[string]any{
			"y": map[string]any{
				"beginAtZero": true,
				"position":    "left",
				"grid":        map[string]any{"drawBorder": false, "color": "rgba(200, 200, 200, 0.2)"},
				"ticks":       map[string]any{"font": tickFont(), "padding": 8, "color": "rgba(100, 100, 100, 0.8)"},
			},
			"x": map[string]any{
				"grid": map[string]any{"drawBorder": false, "display": false},
				"ticks": map[string]any{
					"font":        tickFont(),
					"padding":     5,
					"color":       "rgba(100, 100, 100, 0.8)",
					"maxRotation": 30,
					"minRotation": 0,
				},
			},
		},
		"plugins": map[string]any{
			"legend": map[string]any{
				"position": "top",
				"align":    "end",
				"labels": map[string]any{
					"boxWidth":      12,
					"usePointStyle": true,
					"pointStyle":    "circle",
					"padding":       15,
					"font":          map[string]any{"size": 12},
				},
			},
			"tooltip": tooltip,
		},
	}
}

func doughnutOptions() map[string]any {
	return map[string]any{
		"responsive":          true,
		"maintainAspectRatio": false,
		"cutout":              "75%",
		"plugins": map[string]any{
			"legend":  map[string]any{"display": false},
			"tooltip": tooltipOptions(),
		},
		"animation": map[string]any{
			"animateScale":  true,
			"animateRotate": true,
			"duration":      2000,
			"easing":        "easeOutQuart",
		},
	}
}
