package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/httpapi"
	"github.com/MarkoPoloResearchLab/qareport/internal/layout"
	"github.com/MarkoPoloResearchLab/qareport/internal/report"
)

const (
	commandUseName               = "prerender"
	commandShortDescription      = "Render a QA report to a settled static snapshot"
	commandLongDescription       = "Boot a generated QA report page, let its reveal timers settle and write the page and its chart states to disk"
	flagNameEnvironmentFile      = "env-file"
	flagNameReportPath           = "report-path"
	flagNameOutputDirectory      = "out"
	flagNameLayoutPath           = "layout-path"
	flagNameSettleDuration       = "settle-duration"
	flagNamePrefersDark          = "prefers-dark"
	flagUsageEnvironmentFile     = "optional dotenv file supplying REPORT_PATH, LAYOUT_PATH and SETTLE_DURATION"
	flagUsageReportPath          = "path of the generated report HTML page"
	flagUsageOutputDirectory     = "directory to write the snapshot into"
	flagUsageLayoutPath          = "YAML layout describing element geometry for scroll reveals"
	flagUsageSettleDuration      = "page time advanced before the snapshot is taken"
	flagUsagePrefersDark         = "render with a dark system colour scheme"
	configurationKeyReportPath   = "REPORT_PATH"
	configurationKeyOutput       = "OUTPUT_DIR"
	configurationKeyLayoutPath   = "LAYOUT_PATH"
	configurationKeySettle       = "SETTLE_DURATION"
	configurationKeyPrefersDark  = "PREFERS_DARK"
	environmentFileType          = "env"
	defaultOutputDirectory       = "public"
	defaultSettleDuration        = 2 * time.Second
	dashboardOutputFile          = "index.html"
	chartsOutputFile             = "charts.json"
	renderPathDashboard          = "/dashboard"
	renderPathCharts             = "/api/charts"
	prefersColorSchemeDark       = "dark"
	missingConfigurationMessage  = "missing required configuration"
	readEnvironmentFileMessage   = "read env file"
	renderStatusMessage          = "render %s returned %d"
	writeOutputMessage           = "write %s"
	commandInitializationFailure = "failed to configure command"
	generatedMessage             = "snapshot generated in"
)

type renderTarget struct {
	method     string
	path       string
	handler    gin.HandlerFunc
	outputPath string
}

// PrerenderConfig captures the resolved prerender configuration.
type PrerenderConfig struct {
	ReportPath      string
	OutputDirectory string
	LayoutPath      string
	SettleDuration  time.Duration
	PrefersDark     bool
}

// PrerenderApplication constructs and executes the prerender command.
type PrerenderApplication struct {
	configurationLoader *viper.Viper
	logger              *zap.Logger
}

func NewPrerenderApplication(logger *zap.Logger) *PrerenderApplication {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrerenderApplication{configurationLoader: viper.New(), logger: logger}
}

// Command builds the Cobra command for the prerenderer.
func (application *PrerenderApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		Args:  cobra.NoArgs,
		RunE:  application.runCommand,
	}

	commandFlags := rootCommand.Flags()
	commandFlags.String(flagNameEnvironmentFile, "", flagUsageEnvironmentFile)
	commandFlags.String(flagNameReportPath, "", flagUsageReportPath)
	commandFlags.String(flagNameOutputDirectory, defaultOutputDirectory, flagUsageOutputDirectory)
	commandFlags.String(flagNameLayoutPath, "", flagUsageLayoutPath)
	commandFlags.Duration(flagNameSettleDuration, defaultSettleDuration, flagUsageSettleDuration)
	commandFlags.Bool(flagNamePrefersDark, false, flagUsagePrefersDark)

	flagBindings := map[string]string{
		configurationKeyReportPath:  flagNameReportPath,
		configurationKeyOutput:      flagNameOutputDirectory,
		configurationKeyLayoutPath:  flagNameLayoutPath,
		configurationKeySettle:      flagNameSettleDuration,
		configurationKeyPrefersDark: flagNamePrefersDark,
	}
	for configurationKey, flagName := range flagBindings {
		if bindErr := application.configurationLoader.BindPFlag(configurationKey, commandFlags.Lookup(flagName)); bindErr != nil {
			return nil, bindErr
		}
	}
	application.configurationLoader.AutomaticEnv()

	return rootCommand, nil
}

func (application *PrerenderApplication) loadConfiguration(environmentFilePath string) (PrerenderConfig, error) {
	if trimmedPath := strings.TrimSpace(environmentFilePath); trimmedPath != "" {
		application.configurationLoader.SetConfigFile(trimmedPath)
		application.configurationLoader.SetConfigType(environmentFileType)
		if readErr := application.configurationLoader.ReadInConfig(); readErr != nil {
			return PrerenderConfig{}, fmt.Errorf("%s: %w", readEnvironmentFileMessage, readErr)
		}
	}

	configuration := PrerenderConfig{
		ReportPath:      strings.TrimSpace(application.configurationLoader.GetString(configurationKeyReportPath)),
		OutputDirectory: strings.TrimSpace(application.configurationLoader.GetString(configurationKeyOutput)),
		LayoutPath:      strings.TrimSpace(application.configurationLoader.GetString(configurationKeyLayoutPath)),
		SettleDuration:  application.configurationLoader.GetDuration(configurationKeySettle),
		PrefersDark:     application.configurationLoader.GetBool(configurationKeyPrefersDark),
	}
	var missingParameters []string
	if configuration.ReportPath == "" {
		missingParameters = append(missingParameters, flagNameReportPath)
	}
	if configuration.OutputDirectory == "" {
		missingParameters = append(missingParameters, flagNameOutputDirectory)
	}
	if len(missingParameters) > 0 {
		return PrerenderConfig{}, fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
	}
	return configuration, nil
}

func (application *PrerenderApplication) runCommand(command *cobra.Command, _ []string) error {
	environmentFilePath, _ := command.Flags().GetString(flagNameEnvironmentFile)
	configuration, configurationErr := application.loadConfiguration(environmentFilePath)
	if configurationErr != nil {
		return configurationErr
	}
	if renderErr := application.render(command.Context(), configuration); renderErr != nil {
		return renderErr
	}
	_, _ = fmt.Fprintln(command.OutOrStdout(), generatedMessage, configuration.OutputDirectory)
	return nil
}

func (application *PrerenderApplication) render(ctx context.Context, configuration PrerenderConfig) error {
	source, sourceErr := report.NewSource(ctx, configuration.ReportPath, nil, application.logger)
	if sourceErr != nil {
		return sourceErr
	}

	var pageLayout *layout.Layout
	if configuration.LayoutPath != "" {
		loadedLayout, layoutErr := layout.Load(configuration.LayoutPath)
		if layoutErr != nil {
			return layoutErr
		}
		pageLayout = &loadedLayout
	}

	dashboardHandlers, handlersErr := httpapi.NewDashboardHandlers(source, httpapi.DashboardOptions{
		Layout: pageLayout,
		Settle: configuration.SettleDuration,
		Logger: application.logger,
	})
	if handlersErr != nil {
		return handlersErr
	}

	headers := map[string]string{}
	if configuration.PrefersDark {
		headers[httpapi.HeaderPrefersColorScheme] = prefersColorSchemeDark
	}

	targets := []renderTarget{
		{
			method:     http.MethodGet,
			path:       renderPathDashboard,
			handler:    dashboardHandlers.Dashboard,
			outputPath: filepath.Join(configuration.OutputDirectory, dashboardOutputFile),
		},
		{
			method:     http.MethodGet,
			path:       renderPathCharts,
			handler:    dashboardHandlers.Charts,
			outputPath: filepath.Join(configuration.OutputDirectory, chartsOutputFile),
		},
	}

	for _, target := range targets {
		status, payload := renderHTML(ctx, target.handler, target.method, target.path, headers)
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return fmt.Errorf(renderStatusMessage, target.path, status)
		}
		payload = bytes.ReplaceAll(payload, []byte("\r\n"), []byte("\n"))
		if writeErr := writeFile(target.outputPath, payload); writeErr != nil {
			return fmt.Errorf("%s: %w", fmt.Sprintf(writeOutputMessage, target.outputPath), writeErr)
		}
	}
	return nil
}

func renderHTML(ctx context.Context, handler gin.HandlerFunc, method string, path string, headers map[string]string) (int, []byte) {
	recorder := httptest.NewRecorder()
	ginContext, _ := gin.CreateTestContext(recorder)
	ginContext.Request = httptest.NewRequest(method, path, nil).WithContext(ctx)
	for name, value := range headers {
		ginContext.Request.Header.Set(name, value)
	}
	handler(ginContext)
	return recorder.Code, recorder.Body.Bytes()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func main() {
	gin.SetMode(gin.ReleaseMode)
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger: %v\n", loggerErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application := NewPrerenderApplication(logger)
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}
	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
