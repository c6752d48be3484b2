// Package httpapi serves the settled report dashboard and the endpoints its
// widgets persist through.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/dashboard"
	"github.com/MarkoPoloResearchLab/qareport/internal/layout"
	"github.com/MarkoPoloResearchLab/qareport/internal/model"
	"github.com/MarkoPoloResearchLab/qareport/internal/report"
	"github.com/MarkoPoloResearchLab/qareport/internal/task"
	"github.com/MarkoPoloResearchLab/qareport/internal/widgets"
)

const (
	jsonKeyError  = "error"
	jsonKeyStatus = "status"

	// HeaderSnapshotID names the served snapshot.
	HeaderSnapshotID = "X-Snapshot-ID"
	// HeaderPrefersColorScheme is the client hint carrying the system theme.
	HeaderPrefersColorScheme = "Sec-CH-Prefers-Color-Scheme"
	headerAcceptCH           = "Accept-CH"
	headerVary               = "Vary"
	contentTypeHTML          = "text/html; charset=utf-8"
	prefersColorSchemeDark   = "dark"
	refreshDateLayout        = "2006-01-02"
	statusValueOK            = "ok"
	statusValueAccepted      = "accepted"

	errorValueRenderFailed    = "render_failed"
	errorValueInvalidRange    = "invalid_range"
	errorValueRefreshDisabled = "refresh disabled"
	errorValueViewsDisabled   = "views disabled"
	errorValueLoadViews       = "load_failed"

	errorMessageMissingReportSource = "httpapi: missing report source"

	logEventRenderFailed     = "dashboard_render_failed"
	logEventRecordViewFailed = "report_view_record_failed"
	logEventRefreshRequested = "report_refresh_requested"
	logEventViewsQueryFailed = "report_views_query_failed"
	logFieldReportVersion    = "report_version"
	logFieldRefreshStartDate = "start_date"
	logFieldRefreshEndDate   = "end_date"
	logFieldRenderedSnapshot = "snapshot_id"
	recentViewsWindow        = 24 * time.Hour
	rollupWindowDays         = 30
)

var ErrMissingReportSource = errors.New(errorMessageMissingReportSource)

// ReportSource hands out the latest report page.
type ReportSource interface {
	Current() report.Document
}

// ViewRepository stores and summarizes served snapshots.
type ViewRepository interface {
	Record(ctx context.Context, input model.ReportViewInput) (model.ReportView, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Rollups(ctx context.Context, since time.Time) ([]model.ReportViewRollup, error)
}

// Reloader schedules an out-of-band report reload.
type Reloader interface {
	Trigger()
}

// DashboardOptions configures DashboardHandlers. Nil repositories disable the
// endpoints that need them; the dashboard itself still renders.
type DashboardOptions struct {
	Preferences PreferenceRepository
	Views       ViewRepository
	Reloader    Reloader
	Layout      *layout.Layout
	Settle      time.Duration
	Clock       task.Clock
	Logger      *zap.Logger
}

type DashboardHandlers struct {
	source      ReportSource
	preferences PreferenceRepository
	views       ViewRepository
	reloader    Reloader
	layout      *layout.Layout
	settle      time.Duration
	clock       task.Clock
	logger      *zap.Logger
}

func NewDashboardHandlers(source ReportSource, options DashboardOptions) (*DashboardHandlers, error) {
	if source == nil {
		return nil, ErrMissingReportSource
	}
	if options.Settle < 0 {
		return nil, dashboard.ErrNegativeSettle
	}
	clock := options.Clock
	if clock == nil {
		clock = task.SystemClock{}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandlers{
		source:      source,
		preferences: options.Preferences,
		views:       options.Views,
		reloader:    options.Reloader,
		layout:      options.Layout,
		settle:      options.Settle,
		clock:       clock,
		logger:      logger,
	}, nil
}

type chartsResponse struct {
	ReportVersion int                `json:"reportVersion"`
	ReportDigest  string             `json:"reportDigest"`
	Snapshot      dashboard.Snapshot `json:"snapshot"`
}

type refreshRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type viewRollupResponse struct {
	Date          string `json:"date"`
	Views         int64  `json:"views"`
	UniqueClients int64  `json:"uniqueClients"`
	DarkViews     int64  `json:"darkViews"`
}

type viewsResponse struct {
	RecentViews int64                `json:"recentViews"`
	Rollups     []viewRollupResponse `json:"rollups"`
}

func (handlers *DashboardHandlers) render(context *gin.Context) (dashboard.Snapshot, report.Document, bool) {
	document := handlers.source.Current()
	snapshot, renderErr := dashboard.RenderSnapshot(context.Request.Context(), document.Reader(), dashboard.SnapshotOptions{
		Start:       handlers.clock.Now(),
		Settle:      handlers.settle,
		Layout:      handlers.layout,
		Storage:     handlers.storageFor(context),
		RangePicker: widgets.NewInputRangePicker(),
		PrefersDark: strings.EqualFold(strings.TrimSpace(context.GetHeader(HeaderPrefersColorScheme)), prefersColorSchemeDark),
		Refresh:     handlers.refreshHook,
		Logger:      handlers.logger,
	})
	if renderErr != nil {
		handlers.logger.Error(logEventRenderFailed, zap.Int(logFieldReportVersion, document.Version), zap.Error(renderErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueRenderFailed})
		return dashboard.Snapshot{}, document, false
	}
	return snapshot, document, true
}

func (handlers *DashboardHandlers) refreshHook(startDate string, endDate string) {
	handlers.logger.Info(logEventRefreshRequested,
		zap.String(logFieldRefreshStartDate, startDate),
		zap.String(logFieldRefreshEndDate, endDate),
	)
	if handlers.reloader != nil {
		handlers.reloader.Trigger()
	}
}

// Dashboard serves the report page after its boot timers settled, with the
// calling client's theme and sidebar state applied.
func (handlers *DashboardHandlers) Dashboard(context *gin.Context) {
	snapshot, _, ok := handlers.render(context)
	if !ok {
		return
	}
	handlers.recordView(context, snapshot)
	context.Header(headerAcceptCH, HeaderPrefersColorScheme)
	context.Header(headerVary, HeaderPrefersColorScheme)
	context.Header(HeaderSnapshotID, snapshot.ID)
	context.Data(http.StatusOK, contentTypeHTML, []byte(snapshot.HTML))
}

// Charts returns the settled chart states of the current report.
func (handlers *DashboardHandlers) Charts(context *gin.Context) {
	snapshot, document, ok := handlers.render(context)
	if !ok {
		return
	}
	context.Header(HeaderSnapshotID, snapshot.ID)
	context.JSON(http.StatusOK, chartsResponse{
		ReportVersion: document.Version,
		ReportDigest:  document.Digest,
		Snapshot:      snapshot,
	})
}

func (handlers *DashboardHandlers) recordView(context *gin.Context, snapshot dashboard.Snapshot) {
	if handlers.views == nil {
		return
	}
	clientID, _ := ClientIDFromContext(context)
	_, recordErr := handlers.views.Record(context.Request.Context(), model.ReportViewInput{
		SnapshotID:       snapshot.ID,
		ClientID:         clientID,
		Theme:            string(snapshot.Theme),
		SidebarCollapsed: snapshot.SidebarCollapsed,
		AppliedModules:   len(snapshot.Capabilities.AppliedModules()),
		PendingTasks:     snapshot.PendingTasks,
		UserAgent:        context.Request.UserAgent(),
		Rendered:         handlers.clock.Now(),
	})
	if recordErr != nil {
		handlers.logger.Warn(logEventRecordViewFailed, zap.String(logFieldRenderedSnapshot, snapshot.ID), zap.Error(recordErr))
	}
}

// Refresh accepts a date range selection and schedules a report reload.
func (handlers *DashboardHandlers) Refresh(context *gin.Context) {
	if handlers.reloader == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueRefreshDisabled})
		return
	}
	var payload refreshRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	startDate, startErr := time.Parse(refreshDateLayout, strings.TrimSpace(payload.Start))
	endDate, endErr := time.Parse(refreshDateLayout, strings.TrimSpace(payload.End))
	if startErr != nil || endErr != nil || endDate.Before(startDate) {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidRange})
		return
	}
	handlers.refreshHook(startDate.Format(refreshDateLayout), endDate.Format(refreshDateLayout))
	context.JSON(http.StatusAccepted, gin.H{jsonKeyStatus: statusValueAccepted})
}

// Views summarizes served snapshots: the last day's count and daily rollups.
func (handlers *DashboardHandlers) Views(context *gin.Context) {
	if handlers.views == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueViewsDisabled})
		return
	}
	now := handlers.clock.Now()
	recent, countErr := handlers.views.CountSince(context.Request.Context(), now.Add(-recentViewsWindow))
	if countErr != nil {
		handlers.logger.Error(logEventViewsQueryFailed, zap.Error(countErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueLoadViews})
		return
	}
	rollups, rollupErr := handlers.views.Rollups(context.Request.Context(), now.AddDate(0, 0, -rollupWindowDays))
	if rollupErr != nil {
		handlers.logger.Error(logEventViewsQueryFailed, zap.Error(rollupErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueLoadViews})
		return
	}
	response := viewsResponse{RecentViews: recent, Rollups: make([]viewRollupResponse, 0, len(rollups))}
	for _, rollup := range rollups {
		response.Rollups = append(response.Rollups, viewRollupResponse{
			Date:          rollup.Date.Format(refreshDateLayout),
			Views:         rollup.Views,
			UniqueClients: rollup.UniqueClients,
			DarkViews:     rollup.DarkViews,
		})
	}
	context.JSON(http.StatusOK, response)
}

// Healthz reports the loaded report revision.
func (handlers *DashboardHandlers) Healthz(context *gin.Context) {
	document := handlers.source.Current()
	context.JSON(http.StatusOK, gin.H{
		jsonKeyStatus:   statusValueOK,
		"reportVersion": document.Version,
	})
}
