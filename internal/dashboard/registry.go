// Package dashboard boots a report page: it runs the widgets, initializes the
// charts after the page settles, stages their reveals, and renders settled
// snapshots of the result.
package dashboard

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/charts"
	"github.com/MarkoPoloResearchLab/qareport/internal/widgets"
)

const (
	logEventRefreshRequested = "report_refresh_requested"
	logEventRefreshNoHook    = "report_refresh_without_hook"
	logFieldRefreshStart     = "start"
	logFieldRefreshEnd       = "end"
)

// Registry holds the chart instances and the refresh hook of one page.
type Registry struct {
	mutex       sync.RWMutex
	charts      map[string]charts.Instance
	refreshHook widgets.RefreshFunc
	logger      *zap.Logger
}

// NewRegistry builds an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		charts: make(map[string]charts.Instance),
		logger: logger,
	}
}

// RegisterChart records instance under its element id, replacing any earlier
// chart bound to the same element.
func (registry *Registry) RegisterChart(instance charts.Instance) {
	if instance == nil {
		return
	}
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.charts[instance.ElementID()] = instance
}

// Chart returns the chart bound to elementID.
func (registry *Registry) Chart(elementID string) (charts.Instance, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	instance, found := registry.charts[elementID]
	return instance, found
}

// LineChart returns the trend chart.
func (registry *Registry) LineChart() (charts.Instance, bool) {
	return registry.Chart(charts.LineChartElementID)
}

// DoughnutChart returns the test status chart.
func (registry *Registry) DoughnutChart() (charts.Instance, bool) {
	return registry.Chart(charts.DoughnutChartElementID)
}

// Charts returns every registered chart ordered by element id.
func (registry *Registry) Charts() []charts.Instance {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	instances := make([]charts.Instance, 0, len(registry.charts))
	for _, instance := range registry.charts {
		instances = append(instances, instance)
	}
	sort.Slice(instances, func(left, right int) bool {
		return instances[left].ElementID() < instances[right].ElementID()
	})
	return instances
}

// SetRefreshHook installs the function called when a new date range is picked.
func (registry *Registry) SetRefreshHook(hook widgets.RefreshFunc) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.refreshHook = hook
}

// Refresh logs the request and forwards the range to the refresh hook when one
// is installed.
func (registry *Registry) Refresh(startDate string, endDate string) {
	registry.mutex.RLock()
	hook := registry.refreshHook
	registry.mutex.RUnlock()

	registry.logger.Info(logEventRefreshRequested,
		zap.String(logFieldRefreshStart, startDate),
		zap.String(logFieldRefreshEnd, endDate),
	)
	if hook == nil {
		registry.logger.Debug(logEventRefreshNoHook)
		return
	}
	hook(startDate, endDate)
}
