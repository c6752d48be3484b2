// Package reveal stages when rendered dashboard elements become populated:
// fixed-delay reveals for the centre percentage, progress bars and coverage bar,
// and a viewport-triggered staggered reveal of the trend chart series.
package reveal

import (
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/charts"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
	"github.com/MarkoPoloResearchLab/qareport/internal/task"
)

// Reveal delays.
const (
	CenterPercentDelay  = 1500 * time.Millisecond
	ProgressBarsDelay   = 300 * time.Millisecond
	CoverageBarDelay    = 500 * time.Millisecond
	SeriesRevealStagger = 300 * time.Millisecond
	// VisibilityThreshold is the intersection ratio that starts the series reveal.
	VisibilityThreshold = 0.2
)

// Module names reported through capability results.
const (
	ModuleCenterPercent    = "center_percent"
	ModuleProgressBars     = "progress_bars"
	ModuleCoverageBar      = "coverage_bar"
	ModuleLineChartStaging = "line_chart_staging"
)

// Task labels, one per kind of scheduled reveal.
const (
	TaskLabelCenterPercent = "center_percent"
	TaskLabelProgressBars  = "progress_bars"
	TaskLabelCoverageBar   = "coverage_bar"
	TaskLabelSeriesReveal  = "series_reveal"
)

const (
	centerPercentElementID = "chart-center-percent"
	coverageTextElementID  = "coverageValueText"
	coverageBarElementID   = "coverageBar"
	lazyChartSelector      = ".lazy-chart"

	attributeKeyPercent  = "percent"
	attributeKeyWidth    = "width"
	attributeKeyCount    = "count"
	attributeKeyCoverage = "coverage"

	defaultPercent  = "63"
	defaultWidth    = "0"
	defaultCount    = "0"
	defaultCoverage = "75"

	styleWidth     = "width"
	percentSuffix  = "%"
	initialPercent = "0%"

	reasonCenterPercentMissing = "#chart-center-percent missing"
	reasonProgressBarsMissing  = "no progress bar present"
	reasonCoverageMissing      = "#coverageValueText or #coverageBar missing"
	reasonLazyChartMissing     = ".lazy-chart missing"
	reasonLineChartMissing     = "line chart not registered"

	logEventSeriesRevealTriggered = "series_reveal_triggered"
	logEventSeriesRevealed        = "series_revealed"
	logFieldDatasetIndex          = "dataset_index"
	logFieldIntersectionRatio     = "intersection_ratio"
)

// ProgressBar pairs a bar element id with the id of its count label.
type ProgressBar struct {
	BarID   string
	CountID string
}

// ProgressBars lists the bars revealed together, in reveal order.
var ProgressBars = []ProgressBar{
	{BarID: "pass-bar", CountID: "pass-count"},
	{BarID: "fail-bar", CountID: "fail-count"},
	{BarID: "blocked-bar", CountID: "blocked-count"},
	{BarID: "progress-bar-chart", CountID: "progress-count"},
}

// Sequencer schedules reveals on a one-shot scheduler. Scheduled reveals are
// never cancelled by the sequencer.
type Sequencer struct {
	scheduler *task.OneShotScheduler
	logger    *zap.Logger
	observers []*dom.IntersectionObserver
}

// NewSequencer builds a Sequencer on scheduler.
func NewSequencer(scheduler *task.OneShotScheduler, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{scheduler: scheduler, logger: logger}
}

// Scheduler exposes the scheduler reveals are queued on.
func (sequencer *Sequencer) Scheduler() *task.OneShotScheduler {
	return sequencer.scheduler
}

// RevealCenterPercent shows 0% at once and the final percentage after
// CenterPercentDelay.
func (sequencer *Sequencer) RevealCenterPercent(document *dom.Document) capability.Result {
	centerText, found := document.ElementByID(centerPercentElementID)
	if !found {
		return capability.NotApplicable(ModuleCenterPercent, reasonCenterPercentMissing)
	}
	finalPercent := charts.ParseFloatPrefix(dataOrDefault(centerText, attributeKeyPercent, defaultPercent))
	centerText.SetTextContent(initialPercent)

	sequencer.scheduler.Schedule(TaskLabelCenterPercent, CenterPercentDelay, func() {
		centerText.SetTextContent(charts.FormatNumber(finalPercent) + percentSuffix)
	})
	return capability.Applied(ModuleCenterPercent)
}

// RevealProgressBars sets every present bar's width and count after
// ProgressBarsDelay. Elements are looked up when the reveal fires.
func (sequencer *Sequencer) RevealProgressBars(document *dom.Document) capability.Result {
	if !anyProgressBarPresent(document) {
		return capability.NotApplicable(ModuleProgressBars, reasonProgressBarsMissing)
	}

	sequencer.scheduler.Schedule(TaskLabelProgressBars, ProgressBarsDelay, func() {
		for _, progressBar := range ProgressBars {
			bar, found := document.ElementByID(progressBar.BarID)
			if !found {
				continue
			}
			bar.SetStyle(styleWidth, dataOrDefault(bar, attributeKeyWidth, defaultWidth)+percentSuffix)
			if count, countFound := document.ElementByID(progressBar.CountID); countFound {
				count.SetTextContent(dataOrDefault(bar, attributeKeyCount, defaultCount))
			}
		}
	})
	return capability.Applied(ModuleProgressBars)
}

// RevealCoverageBar resets the coverage text and bar to 0% and fills both
// after CoverageBarDelay.
func (sequencer *Sequencer) RevealCoverageBar(document *dom.Document) capability.Result {
	coverageText, textFound := document.ElementByID(coverageTextElementID)
	coverageBar, barFound := document.ElementByID(coverageBarElementID)
	if !textFound || !barFound {
		return capability.NotApplicable(ModuleCoverageBar, reasonCoverageMissing)
	}
	coverage := charts.ParseFloatPrefix(dataOrDefault(coverageBar, attributeKeyCoverage, defaultCoverage))
	coverageText.SetTextContent(initialPercent)
	coverageBar.SetStyle(styleWidth, initialPercent)

	sequencer.scheduler.Schedule(TaskLabelCoverageBar, CoverageBarDelay, func() {
		formatted := charts.FormatNumber(coverage) + percentSuffix
		coverageText.SetTextContent(formatted)
		coverageBar.SetStyle(styleWidth, formatted)
	})
	return capability.Applied(ModuleCoverageBar)
}

// StageLineChart watches the .lazy-chart container and, the first time it is
// at least VisibilityThreshold visible, un-hides dataset i after
// i*SeriesRevealStagger. The observer unsubscribes itself after that first
// trigger.
func (sequencer *Sequencer) StageLineChart(document *dom.Document, lineChart charts.Instance) capability.Result {
	container, found := document.QuerySelector(lazyChartSelector)
	if !found {
		return capability.NotApplicable(ModuleLineChartStaging, reasonLazyChartMissing)
	}
	if lineChart == nil {
		return capability.NotApplicable(ModuleLineChartStaging, reasonLineChartMissing)
	}

	observer := document.Window().NewIntersectionObserver(VisibilityThreshold, func(entries []dom.IntersectionEntry, observer *dom.IntersectionObserver) {
		for _, entry := range entries {
			if !entry.IsIntersecting {
				continue
			}
			sequencer.logger.Debug(logEventSeriesRevealTriggered,
				zap.String(charts.LogFieldElement, lineChart.ElementID()),
				zap.Float64(logFieldIntersectionRatio, entry.Ratio),
			)
			sequencer.scheduleSeriesReveal(lineChart)
			observer.Unobserve(entry.Target)
		}
	})
	sequencer.observers = append(sequencer.observers, observer)
	observer.Observe(container)
	return capability.Applied(ModuleLineChartStaging)
}

// Observers returns the visibility observers created by StageLineChart.
func (sequencer *Sequencer) Observers() []*dom.IntersectionObserver {
	return append([]*dom.IntersectionObserver(nil), sequencer.observers...)
}

func (sequencer *Sequencer) scheduleSeriesReveal(lineChart charts.Instance) {
	for index := 0; index < lineChart.DatasetCount(); index++ {
		datasetIndex := index
		sequencer.scheduler.Schedule(TaskLabelSeriesReveal, time.Duration(datasetIndex)*SeriesRevealStagger, func() {
			lineChart.SetHidden(datasetIndex, false)
			lineChart.Update()
			sequencer.logger.Debug(logEventSeriesRevealed,
				zap.String(charts.LogFieldElement, lineChart.ElementID()),
				zap.Int(logFieldDatasetIndex, datasetIndex),
			)
		})
	}
}

func anyProgressBarPresent(document *dom.Document) bool {
	for _, progressBar := range ProgressBars {
		if _, found := document.ElementByID(progressBar.BarID); found {
			return true
		}
	}
	return false
}

// dataOrDefault returns the data attribute, or fallback when it is absent or empty.
func dataOrDefault(element *dom.Element, key string, fallback string) string {
	value, present := element.Data(key)
	if !present || value == "" {
		return fallback
	}
	return value
}
