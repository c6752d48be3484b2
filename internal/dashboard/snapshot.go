package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/charts"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
	"github.com/MarkoPoloResearchLab/qareport/internal/layout"
	"github.com/MarkoPoloResearchLab/qareport/internal/task"
	"github.com/MarkoPoloResearchLab/qareport/internal/widgets"
)

const (
	// DefaultSettleDuration covers every boot timer of a report page.
	DefaultSettleDuration = 2 * time.Second
	// TaskLabelLayoutScroll labels scripted layout scrolls.
	TaskLabelLayoutScroll = "layout_scroll"

	errorMessageParseReport  = "dashboard: parse report"
	errorMessageRenderReport = "dashboard: render report"
	errorMessageNegativeTime = "dashboard: settle duration is negative"

	logEventSnapshotRendered = "snapshot_rendered"
	logFieldSnapshotID       = "snapshot_id"
	logFieldPendingTasks     = "pending_tasks"
	logFieldPlacedElements   = "placed_elements"

	sidebarSelector  = ".sidebar"
	sidebarCollapsed = "collapsed"
)

var ErrNegativeSettle = errors.New(errorMessageNegativeTime)

// SnapshotOptions configures RenderSnapshot. Zero values take defaults: the
// current time, DefaultSettleDuration, layout.Default and in-memory storage.
type SnapshotOptions struct {
	Start       time.Time
	Settle      time.Duration
	Layout      *layout.Layout
	Storage     widgets.Storage
	PrefersDark bool
	RangePicker widgets.RangePicker
	Refresh     widgets.RefreshFunc
	Logger      *zap.Logger
}

// ChartState is the settled state of one chart.
type ChartState struct {
	ElementID     string        `json:"elementId"`
	Kind          charts.Kind   `json:"kind"`
	Revision      int           `json:"revision"`
	Hidden        []bool        `json:"hidden"`
	TooltipLabels []string      `json:"tooltipLabels,omitempty"`
	Config        charts.Config `json:"config"`
}

// Snapshot is a report page after its boot timers have run.
type Snapshot struct {
	ID               string            `json:"id"`
	HTML             string            `json:"-"`
	Theme            widgets.Theme     `json:"theme"`
	SidebarCollapsed bool              `json:"sidebarCollapsed"`
	Charts           []ChartState      `json:"charts"`
	Capabilities     capability.Report `json:"capabilities"`
	PendingTasks     int               `json:"pendingTasks"`
	SettledAt        time.Time         `json:"settledAt"`
}

// ChartStates captures every chart in registry. Doughnut charts carry their
// tooltip lines.
func ChartStates(registry *Registry) []ChartState {
	instances := registry.Charts()
	states := make([]ChartState, 0, len(instances))
	for _, instance := range instances {
		config := instance.Snapshot()
		state := ChartState{
			ElementID: instance.ElementID(),
			Kind:      instance.Kind(),
			Revision:  instance.Revision(),
			Hidden:    make([]bool, instance.DatasetCount()),
			Config:    config,
		}
		for index := range state.Hidden {
			state.Hidden[index] = instance.Hidden(index)
		}
		if instance.Kind() == charts.KindDoughnut && len(config.Data.Datasets) > 0 {
			values := config.Data.Datasets[0].Data
			for index, label := range config.Data.Labels {
				state.TooltipLabels = append(state.TooltipLabels, charts.TooltipLabel(label, values, index))
			}
		}
		states = append(states, state)
	}
	return states
}

// RenderSnapshot parses a report page, boots it on a manual clock, replays the
// layout's scripted scrolls and advances time by the settle duration.
func RenderSnapshot(ctx context.Context, reader io.Reader, options SnapshotOptions) (Snapshot, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settle := options.Settle
	if settle == 0 {
		settle = DefaultSettleDuration
	}
	if settle < 0 {
		return Snapshot{}, ErrNegativeSettle
	}
	start := options.Start
	if start.IsZero() {
		start = time.Now()
	}
	pageLayout := layout.Default()
	if options.Layout != nil {
		pageLayout = *options.Layout
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Snapshot{}, ctxErr
	}

	document, parseErr := dom.Parse(reader)
	if parseErr != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", errorMessageParseReport, parseErr)
	}
	placed := pageLayout.Apply(document)

	registry := NewRegistry(logger)
	registry.SetRefreshHook(options.Refresh)
	clock := task.NewManualClock(start)
	page := NewPage(document, registry, PageOptions{
		Clock:       clock,
		Storage:     options.Storage,
		RangePicker: options.RangePicker,
		PrefersDark: options.PrefersDark,
		Logger:      logger,
	})
	page.Boot()
	for _, step := range pageLayout.Scroll {
		offset := float64(step.Y)
		page.Scheduler().Schedule(TaskLabelLayoutScroll, step.After, func() {
			document.Window().ScrollTo(offset)
		})
	}
	clock.Advance(settle)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Snapshot{}, ctxErr
	}

	var rendered strings.Builder
	if renderErr := document.Render(&rendered); renderErr != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", errorMessageRenderReport, renderErr)
	}
	theme, _ := document.DocumentElement().Attribute(widgets.AttributeTheme)
	sidebarIsCollapsed := false
	if sidebar, found := document.QuerySelector(sidebarSelector); found {
		sidebarIsCollapsed = sidebar.HasClass(sidebarCollapsed)
	}
	snapshot := Snapshot{
		ID:               uuid.NewString(),
		HTML:             rendered.String(),
		Theme:            widgets.Theme(theme),
		SidebarCollapsed: sidebarIsCollapsed,
		Charts:           ChartStates(registry),
		Capabilities:     page.Report(),
		PendingTasks:     page.Scheduler().PendingCount(),
		SettledAt:        clock.Now(),
	}
	logger.Debug(logEventSnapshotRendered,
		zap.String(logFieldSnapshotID, snapshot.ID),
		zap.Int(logFieldPendingTasks, snapshot.PendingTasks),
		zap.Int(logFieldPlacedElements, placed),
	)
	return snapshot, nil
}
