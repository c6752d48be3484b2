package httpapi_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/qareport/internal/model"
)

const (
	integrationTestTimeout               = 20 * time.Second
	headlessBrowserSkipReason            = "chromedp headless browser not available"
	headlessBrowserLocateErrorMessage    = "locate headless browser executable"
	headlessBrowserEnvironmentChromedp   = "CHROMEDP_BROWSER"
	headlessBrowserEnvironmentChromePath = "CHROME_PATH"
	rootElementSelector                  = "html"
	themeAttributeName                   = "data-theme"
	saveDarkThemeScript                  = `(function(){
		var request = new XMLHttpRequest();
		request.open("POST", "/api/preferences/theme", false);
		request.setRequestHeader("Content-Type", "application/json");
		request.send(JSON.stringify({theme: "dark"}));
		return request.status;
	})()`
)

var headlessBrowserExecutableNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"headless-shell",
}

var errHeadlessBrowserNotFound = errors.New("headless browser executable not found")

func locateHeadlessBrowserExecutable() (string, error) {
	environmentVariableNames := []string{
		headlessBrowserEnvironmentChromedp,
		headlessBrowserEnvironmentChromePath,
	}

	for _, environmentVariableName := range environmentVariableNames {
		environmentValue := strings.TrimSpace(os.Getenv(environmentVariableName))
		if environmentValue == "" {
			continue
		}
		return environmentValue, nil
	}

	for _, executableName := range headlessBrowserExecutableNames {
		executablePath, lookupErr := exec.LookPath(executableName)
		if lookupErr == nil {
			return executablePath, nil
		}
	}

	return "", fmt.Errorf("%s: %w", headlessBrowserLocateErrorMessage, errHeadlessBrowserNotFound)
}

func buildHeadlessBrowserContext(testingT *testing.T) context.Context {
	testingT.Helper()

	browserExecutablePath, locateBrowserErr := locateHeadlessBrowserExecutable()
	if locateBrowserErr != nil {
		testingT.Skipf("%s: %v", headlessBrowserSkipReason, locateBrowserErr)
	}

	headlessAllocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browserExecutablePath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorContext, allocatorCancel := chromedp.NewExecAllocator(context.Background(), headlessAllocatorOptions...)
	testingT.Cleanup(allocatorCancel)

	browserContext, browserCancel := chromedp.NewContext(allocatorContext)
	testingT.Cleanup(browserCancel)

	contextWithTimeout, timeoutCancel := context.WithTimeout(browserContext, integrationTestTimeout)
	testingT.Cleanup(timeoutCancel)

	return contextWithTimeout
}

func TestBrowserThemeChoiceSurvivesReload(testingT *testing.T) {
	browserContext := buildHeadlessBrowserContext(testingT)
	harness := buildDashboardHarness(testingT, harnessOptions{})
	server := newHTTPTestServer(testingT, harness.router)

	var initialTheme string
	var reloadedTheme string
	var initialFound bool
	var reloadedFound bool
	var saveStatus int

	runErr := chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+dashboardRoutePath),
		chromedp.WaitReady(rootElementSelector, chromedp.ByQuery),
		chromedp.AttributeValue(rootElementSelector, themeAttributeName, &initialTheme, &initialFound, chromedp.ByQuery),
		chromedp.Evaluate(saveDarkThemeScript, &saveStatus),
		chromedp.Reload(),
		chromedp.WaitReady(rootElementSelector, chromedp.ByQuery),
		chromedp.AttributeValue(rootElementSelector, themeAttributeName, &reloadedTheme, &reloadedFound, chromedp.ByQuery),
	)
	require.NoError(testingT, runErr)
	require.True(testingT, initialFound)
	require.Equal(testingT, "light", initialTheme)
	require.Equal(testingT, 200, saveStatus)
	require.True(testingT, reloadedFound)
	require.Equal(testingT, "dark", reloadedTheme)

	var storedPreferences []model.Preference
	require.NoError(testingT, harness.database.Find(&storedPreferences).Error)
	require.Len(testingT, storedPreferences, 1)
	require.Equal(testingT, "dark", storedPreferences[0].Value)
}
