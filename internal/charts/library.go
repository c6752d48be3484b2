package charts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	configScriptTag         = "script"
	configScriptType        = "application/json"
	configScriptIDSuffix    = "-config"
	attributeScriptType     = "type"
	attributeElementID      = "id"
	attributeChartFor       = "data-chart-for"
	attributeChartRevision  = "data-chart-revision"
	configScriptSelectorFmt = `script[data-chart-for="%s"]`

	errorMessageChartElementMissing = "charts: chart element missing"
	errorMessageChartElementID      = "charts: chart element has no id"
	errorMessageChartConfigMissing  = "charts: chart config missing"

	logEventChartCreated      = "chart_created"
	logEventChartEncodeFailed = "chart_config_encode_failed"
	logFieldChartKind         = "kind"
)

var (
	ErrChartElementMissing = errors.New(errorMessageChartElementMissing)
	ErrChartElementID      = errors.New(errorMessageChartElementID)
	ErrChartConfigMissing  = errors.New(errorMessageChartConfigMissing)
)

// Instance is a live chart bound to a page element.
type Instance interface {
	ElementID() string
	Kind() Kind
	DatasetCount() int
	Hidden(index int) bool
	SetHidden(index int, hidden bool)
	// Update redraws the chart from its current configuration.
	Update()
	Revision() int
	Snapshot() Config
}

// Library constructs chart instances.
type Library interface {
	NewChart(element *dom.Element, config *Config) (Instance, error)
}

// EmbeddedLibrary draws charts by embedding their configuration as a JSON
// script element next to the chart element, where the page's charting script
// picks it up. Every Update rewrites the script and bumps its revision.
type EmbeddedLibrary struct {
	logger *zap.Logger
}

// NewEmbeddedLibrary builds an EmbeddedLibrary.
func NewEmbeddedLibrary(logger *zap.Logger) *EmbeddedLibrary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddedLibrary{logger: logger}
}

// NewChart binds config to element and draws it once.
func (library *EmbeddedLibrary) NewChart(element *dom.Element, config *Config) (Instance, error) {
	if element == nil {
		return nil, ErrChartElementMissing
	}
	if config == nil {
		return nil, ErrChartConfigMissing
	}
	elementID := element.ID()
	if elementID == "" {
		return nil, ErrChartElementID
	}

	script := configScript(element, elementID)
	chart := &embeddedChart{
		elementID: elementID,
		config:    config,
		script:    script,
		logger:    library.logger,
	}
	chart.Update()
	library.logger.Debug(logEventChartCreated,
		zap.String(LogFieldElement, elementID),
		zap.String(logFieldChartKind, string(config.Type)),
	)
	return chart, nil
}

// configScript finds the script a previous render left behind, or inserts a
// new one after element.
func configScript(element *dom.Element, elementID string) *dom.Element {
	if parent, hasParent := element.Parent(); hasParent {
		if existing, found := parent.QuerySelector(fmt.Sprintf(configScriptSelectorFmt, elementID)); found {
			return existing
		}
	}
	script := element.OwnerDocument().CreateElement(configScriptTag)
	script.SetAttribute(attributeScriptType, configScriptType)
	script.SetAttribute(attributeElementID, elementID+configScriptIDSuffix)
	script.SetAttribute(attributeChartFor, elementID)
	element.InsertAfter(script)
	return script
}

type embeddedChart struct {
	mutex     sync.Mutex
	elementID string
	config    *Config
	script    *dom.Element
	revision  int
	logger    *zap.Logger
}

func (chart *embeddedChart) ElementID() string {
	return chart.elementID
}

func (chart *embeddedChart) Kind() Kind {
	return chart.config.Type
}

func (chart *embeddedChart) DatasetCount() int {
	chart.mutex.Lock()
	defer chart.mutex.Unlock()
	return len(chart.config.Data.Datasets)
}

func (chart *embeddedChart) Hidden(index int) bool {
	chart.mutex.Lock()
	defer chart.mutex.Unlock()
	if index < 0 || index >= len(chart.config.Data.Datasets) {
		return false
	}
	return chart.config.Data.Datasets[index].Hidden
}

func (chart *embeddedChart) SetHidden(index int, hidden bool) {
	chart.mutex.Lock()
	defer chart.mutex.Unlock()
	if index < 0 || index >= len(chart.config.Data.Datasets) {
		return
	}
	chart.config.Data.Datasets[index].Hidden = hidden
}

func (chart *embeddedChart) Update() {
	chart.mutex.Lock()
	defer chart.mutex.Unlock()
	encoded, encodeErr := json.Marshal(chart.config)
	if encodeErr != nil {
		chart.logger.Error(logEventChartEncodeFailed,
			zap.String(LogFieldElement, chart.elementID),
			zap.Error(encodeErr),
		)
		return
	}
	chart.revision++
	chart.script.SetTextContent(string(encoded))
	chart.script.SetAttribute(attributeChartRevision, strconv.Itoa(chart.revision))
}

func (chart *embeddedChart) Revision() int {
	chart.mutex.Lock()
	defer chart.mutex.Unlock()
	return chart.revision
}

func (chart *embeddedChart) Snapshot() Config {
	chart.mutex.Lock()
	defer chart.mutex.Unlock()
	snapshot := *chart.config
	snapshot.Data.Datasets = make([]*Dataset, len(chart.config.Data.Datasets))
	for index, dataset := range chart.config.Data.Datasets {
		datasetCopy := *dataset
		snapshot.Data.Datasets[index] = &datasetCopy
	}
	return snapshot
}

// NewLineChart constructs the trend chart with every dataset hidden, ready for
// a staged reveal.
func NewLineChart(library Library, element *dom.Element, spec ChartSpec) (Instance, error) {
	instance, createErr := library.NewChart(element, BuildLineConfig(spec))
	if createErr != nil {
		return nil, createErr
	}
	for index := 0; index < instance.DatasetCount(); index++ {
		instance.SetHidden(index, true)
	}
	instance.Update()
	return instance, nil
}

// NewDoughnutChart constructs the test status chart.
func NewDoughnutChart(library Library, element *dom.Element, spec ChartSpec) (Instance, error) {
	return library.NewChart(element, BuildDoughnutConfig(spec))
}

