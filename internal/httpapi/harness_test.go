package httpapi_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/qareport/internal/httpapi"
	"github.com/MarkoPoloResearchLab/qareport/internal/report"
	"github.com/MarkoPoloResearchLab/qareport/internal/storage"
	"github.com/MarkoPoloResearchLab/qareport/internal/task"
	"github.com/MarkoPoloResearchLab/qareport/internal/testutil"
)

const (
	testSessionSecret   = "qareport-test-session-secret-0123456789"
	testAdminToken      = "admin-test-token"
	dashboardRoutePath  = "/dashboard"
	chartsRoutePath     = "/api/charts"
	preferencesPath     = "/api/preferences"
	themePreferencePath = "/api/preferences/theme"
	sidebarPath         = "/api/preferences/sidebar"
	refreshRoutePath    = "/api/refresh"
	viewsRoutePath      = "/api/views"
	healthRoutePath     = "/healthz"
	jsonContentType     = "application/json"
)

var harnessClockStart = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

const reportPage = `<!DOCTYPE html>
<html>
<head><title>QA Report</title></head>
<body>
	<button id="sidebar-toggle"></button>
	<nav class="sidebar"></nav>
	<main class="main-content">
		<input id="dark-mode-toggle" type="checkbox">
		<input id="date-range-picker" type="text">
		<span id="date-range-display"></span>
		<div class="lazy-chart"><canvas id="order-chart"></canvas></div>
		<canvas id="test-status-chart" data-values="[60, 20, 10, 10]"></canvas>
		<span id="chart-center-percent" data-percent="80">?</span>
		<div id="pass-bar" data-width="60" data-count="12"></div><span id="pass-count">0</span>
		<div id="fail-bar" data-width="20" data-count="4"></div><span id="fail-count">0</span>
		<span id="coverageValueText"></span><div id="coverageBar" data-coverage="91.5"></div>
	</main>
</body>
</html>`

type countingReloader struct {
	triggers atomic.Int32
}

func (reloader *countingReloader) Trigger() {
	reloader.triggers.Add(1)
}

type harnessOptions struct {
	withoutPreferences bool
	withoutViews       bool
	withoutReloader    bool
	adminToken         string
	logger             *zap.Logger
}

type dashboardHarness struct {
	router   *gin.Engine
	database *gorm.DB
	source   *report.Source
	reloader *countingReloader
	clock    *task.ManualClock
}

func writeReportFile(testingT *testing.T, content string) string {
	testingT.Helper()
	path := filepath.Join(testingT.TempDir(), "report.html")
	require.NoError(testingT, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func buildDashboardHarness(testingT *testing.T, options harnessOptions) dashboardHarness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)

	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	database := testutil.NewSQLiteTestDatabase(testingT).Open(testingT)
	clock := task.NewManualClock(harnessClockStart)
	source, sourceErr := report.NewSource(context.Background(), writeReportFile(testingT, reportPage), clock, logger)
	require.NoError(testingT, sourceErr)

	dashboardOptions := httpapi.DashboardOptions{Clock: clock, Logger: logger}
	if !options.withoutPreferences {
		preferenceStore, storeErr := storage.NewPreferenceStore(database)
		require.NoError(testingT, storeErr)
		dashboardOptions.Preferences = preferenceStore
	}
	if !options.withoutViews {
		viewStore, storeErr := storage.NewViewStore(database)
		require.NoError(testingT, storeErr)
		dashboardOptions.Views = viewStore
	}
	reloader := &countingReloader{}
	if !options.withoutReloader {
		dashboardOptions.Reloader = reloader
	}
	handlers, handlersErr := httpapi.NewDashboardHandlers(source, dashboardOptions)
	require.NoError(testingT, handlersErr)

	router := gin.New()
	router.Use(httpapi.RequestLogger(logger))
	router.Use(httpapi.ClientIdentity(sessions.NewCookieStore([]byte(testSessionSecret)), logger))
	router.GET(dashboardRoutePath, handlers.Dashboard)
	router.GET(chartsRoutePath, handlers.Charts)
	router.GET(preferencesPath, handlers.Preferences)
	router.POST(themePreferencePath, handlers.SetTheme)
	router.POST(sidebarPath, handlers.SetSidebar)
	router.POST(refreshRoutePath, handlers.Refresh)
	router.GET(viewsRoutePath, httpapi.AdminAuthMiddleware(options.adminToken), handlers.Views)
	router.GET(healthRoutePath, handlers.Healthz)

	return dashboardHarness{
		router:   router,
		database: database,
		source:   source,
		reloader: reloader,
		clock:    clock,
	}
}

func (harness dashboardHarness) perform(testingT *testing.T, method string, path string, body string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, bodyReader)
	if body != "" {
		request.Header.Set("Content-Type", jsonContentType)
	}
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

func clientCookies(testingT *testing.T, recorder *httptest.ResponseRecorder) []*http.Cookie {
	testingT.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == httpapi.ClientSessionName {
			return []*http.Cookie{cookie}
		}
	}
	require.FailNow(testingT, "client session cookie not found in response")
	return nil
}

func newHTTPTestServer(testingT *testing.T, handler http.Handler) *httptest.Server {
	testingT.Helper()

	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil {
		testingT.Skipf("network listener unavailable: %v", listenErr)
	}
	server := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	server.Start()
	testingT.Cleanup(server.Close)
	return server
}
