package dashboard_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/qareport/internal/charts"
	"github.com/MarkoPoloResearchLab/qareport/internal/dashboard"
	"github.com/MarkoPoloResearchLab/qareport/internal/layout"
	"github.com/MarkoPoloResearchLab/qareport/internal/widgets"
)

const belowFoldLayout = `
viewport:
  height: 800
elements:
  - selector: ".lazy-chart"
    top: 1400
    height: 300px
`

func TestRenderSnapshotSettlesReport(testingT *testing.T) {
	storage := widgets.NewMemoryStorage()
	require.NoError(testingT, storage.SetItem(widgets.PreferenceTheme, string(widgets.ThemeDark)))
	require.NoError(testingT, storage.SetItem(widgets.PreferenceSidebarCollapsed, "true"))

	snapshot, renderErr := dashboard.RenderSnapshot(context.Background(), strings.NewReader(reportPage), dashboard.SnapshotOptions{
		Start:   testClockStart,
		Storage: storage,
	})
	require.NoError(testingT, renderErr)

	require.NotEmpty(testingT, snapshot.ID)
	require.Equal(testingT, widgets.ThemeDark, snapshot.Theme)
	require.True(testingT, snapshot.SidebarCollapsed)
	require.Zero(testingT, snapshot.PendingTasks)
	require.Equal(testingT, testClockStart.Add(dashboard.DefaultSettleDuration), snapshot.SettledAt)
	require.Contains(testingT, snapshot.HTML, `data-theme="dark"`)
	require.Contains(testingT, snapshot.HTML, `data-chart-for="order-chart"`)
	require.Contains(testingT, snapshot.HTML, ">80%<")

	require.Len(testingT, snapshot.Charts, 2)
	lineState := snapshot.Charts[0]
	require.Equal(testingT, charts.LineChartElementID, lineState.ElementID)
	require.Equal(testingT, charts.KindLine, lineState.Kind)
	require.Equal(testingT, []bool{false, false, false}, lineState.Hidden)
	require.Equal(testingT, 5, lineState.Revision)
	require.Empty(testingT, lineState.TooltipLabels)

	doughnutState := snapshot.Charts[1]
	require.Equal(testingT, charts.KindDoughnut, doughnutState.Kind)
	require.Equal(testingT, []string{
		"Passed: 60 (60%)",
		"Failed: 20 (20%)",
		"Blocked: 10 (10%)",
		"In Progress: 10 (10%)",
	}, doughnutState.TooltipLabels)
}

func TestRenderSnapshotFollowsLayoutScrolls(testingT *testing.T) {
	testCases := []struct {
		name           string
		scroll         string
		expectedHidden []bool
	}{
		{name: "chart never scrolled into view", scroll: "", expectedHidden: []bool{true, true, true}},
		{name: "chart scrolled into view", scroll: "scroll:\n  - after: 1s\n    y: 1200\n", expectedHidden: []bool{false, false, false}},
		{name: "scroll after settling", scroll: "scroll:\n  - after: 5s\n    y: 1200\n", expectedHidden: []bool{true, true, true}},
	}
	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			pageLayout, layoutErr := layout.Parse(strings.NewReader(belowFoldLayout + testCase.scroll))
			require.NoError(testingT, layoutErr)

			snapshot, renderErr := dashboard.RenderSnapshot(context.Background(), strings.NewReader(reportPage), dashboard.SnapshotOptions{
				Start:  testClockStart,
				Layout: &pageLayout,
			})
			require.NoError(testingT, renderErr)
			require.Equal(testingT, testCase.expectedHidden, snapshot.Charts[0].Hidden)
		})
	}
}

func TestRenderSnapshotSystemPreferenceAndRefresh(testingT *testing.T) {
	snapshot, renderErr := dashboard.RenderSnapshot(context.Background(), strings.NewReader(reportPage), dashboard.SnapshotOptions{
		Start:       testClockStart,
		PrefersDark: true,
		Settle:      time.Second,
	})
	require.NoError(testingT, renderErr)
	require.Equal(testingT, widgets.ThemeDark, snapshot.Theme)
	require.False(testingT, snapshot.SidebarCollapsed)
	require.Equal(testingT, 1, snapshot.PendingTasks)
	require.Contains(testingT, snapshot.HTML, ">0%<")
}

func TestRenderSnapshotRejectsBadInput(testingT *testing.T) {
	_, settleErr := dashboard.RenderSnapshot(context.Background(), strings.NewReader(reportPage), dashboard.SnapshotOptions{Settle: -time.Second})
	require.ErrorIs(testingT, settleErr, dashboard.ErrNegativeSettle)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, cancelErr := dashboard.RenderSnapshot(cancelled, strings.NewReader(reportPage), dashboard.SnapshotOptions{})
	require.ErrorIs(testingT, cancelErr, context.Canceled)
}
