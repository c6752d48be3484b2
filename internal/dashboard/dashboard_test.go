package dashboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

var testClockStart = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

const reportPage = `<!DOCTYPE html>
<html>
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

func parseReport(testingT *testing.T, markup string) *dom.Document {
	testingT.Helper()
	document, parseErr := dom.ParseString(markup)
	require.NoError(testingT, parseErr)
	return document
}

func textOf(testingT *testing.T, document *dom.Document, id string) string {
	testingT.Helper()
	element, found := document.ElementByID(id)
	require.True(testingT, found, id)
	return element.TextContent()
}
