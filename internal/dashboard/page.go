package dashboard

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/charts"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
	"github.com/MarkoPoloResearchLab/qareport/internal/reveal"
	"github.com/MarkoPoloResearchLab/qareport/internal/task"
	"github.com/MarkoPoloResearchLab/qareport/internal/widgets"
)

const (
	// ChartInitDelay separates widget setup from chart initialisation.
	ChartInitDelay = 300 * time.Millisecond
	// TaskLabelChartInit labels the delayed chart initialisation.
	TaskLabelChartInit = "chart_init"

	logEventPageBooted        = "page_booted"
	logEventChartsInitialized = "charts_initialized"
	logEventChartCreateError  = "chart_create_failed"
	logFieldAppliedModules    = "applied_modules"
	logFieldChartCount        = "chart_count"
)

// PageOptions configures a Page. Nil collaborators take in-memory, wall clock
// and no-op defaults.
type PageOptions struct {
	Clock       task.Clock
	Loop        *task.EventLoop
	Storage     widgets.Storage
	RangePicker widgets.RangePicker
	PrefersDark bool
	Library     charts.Library
	Logger      *zap.Logger
}

// Page is one booted report document.
type Page struct {
	document    *dom.Document
	registry    *Registry
	scheduler   *task.OneShotScheduler
	sequencer   *reveal.Sequencer
	loader      *charts.Loader
	library     charts.Library
	environment widgets.Environment
	logger      *zap.Logger

	booted      atomic.Bool
	reportMutex sync.Mutex
	report      capability.Report
}

// NewPage prepares document for booting. The registry's Refresh method becomes
// the date picker's refresh hook.
func NewPage(document *dom.Document, registry *Registry, options PageOptions) *Page {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry(logger)
	}
	library := options.Library
	if library == nil {
		library = charts.NewEmbeddedLibrary(logger)
	}
	scheduler := task.NewOneShotScheduler(options.Clock, options.Loop, logger)
	return &Page{
		document:  document,
		registry:  registry,
		scheduler: scheduler,
		sequencer: reveal.NewSequencer(scheduler, logger),
		loader:    charts.NewLoader(logger),
		library:   library,
		environment: widgets.Environment{
			Document:    document,
			Storage:     options.Storage,
			Clock:       scheduler.Clock(),
			RangePicker: options.RangePicker,
			PrefersDark: options.PrefersDark,
			Refresh:     registry.Refresh,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Document returns the page document.
func (page *Page) Document() *dom.Document {
	return page.document
}

// Registry returns the page's chart registry.
func (page *Page) Registry() *Registry {
	return page.registry
}

// Scheduler returns the scheduler page timers run on.
func (page *Page) Scheduler() *task.OneShotScheduler {
	return page.scheduler
}

// Boot runs the widgets at once and initializes the charts after
// ChartInitDelay. Later calls do nothing.
func (page *Page) Boot() {
	if !page.booted.CompareAndSwap(false, true) {
		return
	}
	widgetReport := widgets.InitAll(page.environment)
	page.record(widgetReport...)
	page.scheduler.Schedule(TaskLabelChartInit, ChartInitDelay, page.initializeCharts)
	page.logger.Debug(logEventPageBooted, zap.Strings(logFieldAppliedModules, widgetReport.AppliedModules()))
}

// Report returns the capability results recorded so far.
func (page *Page) Report() capability.Report {
	page.reportMutex.Lock()
	defer page.reportMutex.Unlock()
	return append(capability.Report(nil), page.report...)
}

func (page *Page) record(results ...capability.Result) {
	page.reportMutex.Lock()
	defer page.reportMutex.Unlock()
	page.report = append(page.report, results...)
}

func (page *Page) initializeCharts() {
	page.initializeLineChart()
	page.initializeDoughnutChart()
	page.record(
		page.sequencer.RevealProgressBars(page.document),
		page.sequencer.RevealCoverageBar(page.document),
	)

	var lineChart charts.Instance
	if instance, found := page.registry.LineChart(); found {
		lineChart = instance
	}
	page.record(page.sequencer.StageLineChart(page.document, lineChart))
	page.logger.Debug(logEventChartsInitialized, zap.Int(logFieldChartCount, len(page.registry.Charts())))
}

func (page *Page) initializeLineChart() {
	loaded := page.loader.LoadLineChart(page.document)
	page.record(loaded.Capability)
	if !loaded.Capability.Applied {
		return
	}
	instance, createErr := charts.NewLineChart(page.library, loaded.Element, loaded.Spec)
	if createErr != nil {
		page.chartCreateFailed(charts.ModuleLineChartData, loaded.Element, createErr)
		return
	}
	page.registry.RegisterChart(instance)
}

func (page *Page) initializeDoughnutChart() {
	loaded := page.loader.LoadDoughnutChart(page.document)
	page.record(loaded.Capability)
	if !loaded.Capability.Applied {
		return
	}
	instance, createErr := charts.NewDoughnutChart(page.library, loaded.Element, loaded.Spec)
	if createErr != nil {
		page.chartCreateFailed(charts.ModuleDoughnutChartData, loaded.Element, createErr)
		return
	}
	page.registry.RegisterChart(instance)
	page.record(page.sequencer.RevealCenterPercent(page.document))
}

func (page *Page) chartCreateFailed(module string, element *dom.Element, createErr error) {
	page.logger.Error(logEventChartCreateError,
		zap.String(charts.LogFieldElement, element.ID()),
		zap.Error(createErr),
	)
	page.record(capability.NotApplicable(module, createErr.Error()))
}
