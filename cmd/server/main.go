package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/qareport/internal/httpapi"
	"github.com/MarkoPoloResearchLab/qareport/internal/layout"
	"github.com/MarkoPoloResearchLab/qareport/internal/report"
	"github.com/MarkoPoloResearchLab/qareport/internal/storage"
	"github.com/MarkoPoloResearchLab/qareport/internal/task"
)

const (
	commandUseName                   = "server"
	commandShortDescription          = "Serve the QA report dashboard"
	commandLongDescription           = "Serve a generated QA report with its widgets and charts settled per browser client"
	missingConfigurationMessage      = "missing required configuration"
	loggerCreationErrorMessage       = "logger"
	logEventListening                = "listening"
	logEventShutdown                 = "shutdown"
	logFieldAddress                  = "addr"
	logFieldServeMode                = "serve_mode"
	flagNameApplicationAddress       = "app-addr"
	flagNameReportPath               = "report-path"
	flagNameSessionSecret            = "session-secret"
	flagNameDatabaseDataSourceName   = "db-dsn"
	flagNameAdminBearerToken         = "admin-bearer-token"
	flagNameAllowedOrigins           = "allowed-origins"
	flagNameServeMode                = "serve-mode"
	flagNameLayoutPath               = "layout-path"
	flagNameRefreshInterval          = "refresh-interval"
	flagNameSettleDuration           = "settle-duration"
	flagNameViewRetentionDays        = "view-retention-days"
	flagUsageApplicationAddress      = "address for the HTTP server to listen on"
	flagUsageReportPath              = "path of the generated report HTML page"
	flagUsageSessionSecret           = "secret signing the anonymous client cookie"
	flagUsageDatabaseDataSourceName  = "SQLite data source storing preferences and report views"
	flagUsageAdminBearerToken        = "bearer token required for the report view statistics"
	flagUsageAllowedOrigins          = "comma separated origins allowed to call the API with credentials"
	flagUsageServeMode               = "route groups to serve: monolith, web or api"
	flagUsageLayoutPath              = "YAML layout describing element geometry for scroll reveals"
	flagUsageRefreshInterval         = "interval between report file reloads"
	flagUsageSettleDuration          = "page time advanced before a snapshot is served"
	flagUsageViewRetentionDays       = "days of raw report views kept after rollup"
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyReportPath         = "REPORT_PATH"
	environmentKeySessionSecret      = "SESSION_SECRET"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyAdminBearerToken   = "ADMIN_BEARER_TOKEN"
	environmentKeyAllowedOrigins     = "ALLOWED_ORIGINS"
	environmentKeyServeMode          = "SERVE_MODE"
	environmentKeyLayoutPath         = "LAYOUT_PATH"
	environmentKeyRefreshInterval    = "REFRESH_INTERVAL"
	environmentKeySettleDuration     = "SETTLE_DURATION"
	environmentKeyViewRetentionDays  = "VIEW_RETENTION_DAYS"
	defaultApplicationAddress        = ":8080"
	defaultDatabaseDataSourceName    = "qareport.db"
	defaultRefreshInterval           = time.Minute
	defaultSettleDuration            = 2 * time.Second
	defaultViewRetentionDays         = 30
	viewRollupInterval               = time.Hour
	schedulerNameReportReload        = "report_reload"
	schedulerNameViewRollup          = "view_rollup"
	sessionMaxAgeSeconds             = 365 * 24 * 60 * 60
	originSeparator                  = ","
	loggerContextOpenDatabase        = "open_db"
	loggerContextAutoMigrate         = "migrate"
	loggerContextServer              = "server"
	readHeaderTimeoutSeconds         = 5
	shutdownTimeout                  = 5 * time.Second
	unexpectedArgumentsMessage       = "unexpected command arguments"
	commandInitializationFailure     = "failed to configure command"
	flagNotDefinedMessage            = "flag %s not defined"
	environmentConfigurationError    = "failed to apply environment configuration"
	loadReportErrorMessage           = "load report"
	loadLayoutErrorMessage           = "load layout"
	invalidConfigurationMessage      = "invalid configuration"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	ReportPath             string
	SessionSecret          string
	DatabaseDataSourceName string
	AdminBearerToken       string
	AllowedOrigins         []string
	ServeMode              ServeMode
	LayoutPath             string
	RefreshInterval        time.Duration
	SettleDuration         time.Duration
	ViewRetentionDays      int
}

// DatabaseOpener opens a database connection using the provided data source name.
type DatabaseOpener func(string) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

type configurationBinding struct {
	environmentKey string
	flagName       string
}

var configurationBindings = []configurationBinding{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyReportPath, flagName: flagNameReportPath},
	{environmentKey: environmentKeySessionSecret, flagName: flagNameSessionSecret},
	{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
	{environmentKey: environmentKeyAdminBearerToken, flagName: flagNameAdminBearerToken},
	{environmentKey: environmentKeyAllowedOrigins, flagName: flagNameAllowedOrigins},
	{environmentKey: environmentKeyServeMode, flagName: flagNameServeMode},
	{environmentKey: environmentKeyLayoutPath, flagName: flagNameLayoutPath},
	{environmentKey: environmentKeyRefreshInterval, flagName: flagNameRefreshInterval},
	{environmentKey: environmentKeySettleDuration, flagName: flagNameSettleDuration},
	{environmentKey: environmentKeyViewRetentionDays, flagName: flagNameViewRetentionDays},
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      openSQLiteDatabase,
	}
}

func openSQLiteDatabase(dataSourceName string) (*gorm.DB, error) {
	return storage.OpenDatabase(storage.Config{
		DriverName:     storage.DriverNameSQLite,
		DataSourceName: dataSourceName,
	})
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDataSource, defaultDatabaseDataSourceName)
	application.configurationLoader.SetDefault(environmentKeyServeMode, string(ServeModeMonolith))
	application.configurationLoader.SetDefault(environmentKeyRefreshInterval, defaultRefreshInterval)
	application.configurationLoader.SetDefault(environmentKeySettleDuration, defaultSettleDuration)
	application.configurationLoader.SetDefault(environmentKeyViewRetentionDays, defaultViewRetentionDays)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameReportPath, "", flagUsageReportPath)
	commandFlags.String(flagNameSessionSecret, "", flagUsageSessionSecret)
	commandFlags.String(flagNameDatabaseDataSourceName, defaultDatabaseDataSourceName, flagUsageDatabaseDataSourceName)
	commandFlags.String(flagNameAdminBearerToken, "", flagUsageAdminBearerToken)
	commandFlags.String(flagNameAllowedOrigins, "", flagUsageAllowedOrigins)
	commandFlags.String(flagNameServeMode, string(ServeModeMonolith), flagUsageServeMode)
	commandFlags.String(flagNameLayoutPath, "", flagUsageLayoutPath)
	commandFlags.Duration(flagNameRefreshInterval, defaultRefreshInterval, flagUsageRefreshInterval)
	commandFlags.Duration(flagNameSettleDuration, defaultSettleDuration, flagUsageSettleDuration)
	commandFlags.Int(flagNameViewRetentionDays, defaultViewRetentionDays, flagUsageViewRetentionDays)

	for _, binding := range configurationBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range configurationBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameReportPath); markErr != nil {
		return markErr
	}

	if markErr := command.MarkFlagRequired(flagNameSessionSecret); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() (ServerConfig, error) {
	serveMode, serveModeErr := ParseServeMode(application.configurationLoader.GetString(environmentKeyServeMode))
	if serveModeErr != nil {
		return ServerConfig{}, serveModeErr
	}

	return ServerConfig{
		ApplicationAddress:     application.configurationLoader.GetString(environmentKeyApplicationAddress),
		ReportPath:             strings.TrimSpace(application.configurationLoader.GetString(environmentKeyReportPath)),
		SessionSecret:          strings.TrimSpace(application.configurationLoader.GetString(environmentKeySessionSecret)),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		AdminBearerToken:       strings.TrimSpace(application.configurationLoader.GetString(environmentKeyAdminBearerToken)),
		AllowedOrigins:         splitOrigins(application.configurationLoader.GetString(environmentKeyAllowedOrigins)),
		ServeMode:              serveMode,
		LayoutPath:             strings.TrimSpace(application.configurationLoader.GetString(environmentKeyLayoutPath)),
		RefreshInterval:        application.configurationLoader.GetDuration(environmentKeyRefreshInterval),
		SettleDuration:         application.configurationLoader.GetDuration(environmentKeySettleDuration),
		ViewRetentionDays:      application.configurationLoader.GetInt(environmentKeyViewRetentionDays),
	}, nil
}

func splitOrigins(rawOrigins string) []string {
	var origins []string
	for _, origin := range strings.Split(rawOrigins, originSeparator) {
		trimmedOrigin := strings.TrimSpace(origin)
		if trimmedOrigin == "" {
			continue
		}
		origins = append(origins, trimmedOrigin)
	}
	return origins
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return fmt.Errorf("%s: %w", invalidConfigurationMessage, configurationErr)
	}

	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	runtime, runtimeErr := application.buildRuntime(signalContext, serverConfig, logger)
	if runtimeErr != nil {
		return runtimeErr
	}

	return runtime.serve(signalContext, serverConfig, logger)
}

type serverRuntime struct {
	router          *gin.Engine
	reloadScheduler *task.Scheduler
	rollupScheduler *task.Scheduler
}

func (application *ServerApplication) buildRuntime(ctx context.Context, serverConfig ServerConfig, logger *zap.Logger) (*serverRuntime, error) {
	database, databaseErr := application.databaseOpener(serverConfig.DatabaseDataSourceName)
	if databaseErr != nil {
		logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
		return nil, fmt.Errorf("%s: %w", loggerContextOpenDatabase, databaseErr)
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
		return nil, fmt.Errorf("%s: %w", loggerContextAutoMigrate, migrateErr)
	}

	clock := task.SystemClock{}
	source, sourceErr := report.NewSource(ctx, serverConfig.ReportPath, clock, logger)
	if sourceErr != nil {
		return nil, fmt.Errorf("%s: %w", loadReportErrorMessage, sourceErr)
	}

	var pageLayout *layout.Layout
	if serverConfig.LayoutPath != "" {
		loadedLayout, layoutErr := layout.Load(serverConfig.LayoutPath)
		if layoutErr != nil {
			return nil, fmt.Errorf("%s: %w", loadLayoutErrorMessage, layoutErr)
		}
		pageLayout = &loadedLayout
	}

	preferenceStore, preferenceErr := storage.NewPreferenceStore(database)
	if preferenceErr != nil {
		return nil, preferenceErr
	}
	viewStore, viewErr := storage.NewViewStore(database)
	if viewErr != nil {
		return nil, viewErr
	}

	reloadScheduler := task.NewScheduler(schedulerNameReportReload, serverConfig.RefreshInterval, source.Runner(), logger)
	rollupJob := task.NewViewRollupJob(database, clock, logger, task.ViewRollupConfig{RetentionDays: serverConfig.ViewRetentionDays})
	rollupScheduler := task.NewScheduler(schedulerNameViewRollup, viewRollupInterval, rollupJob.Runner(), logger)

	dashboardHandlers, handlersErr := httpapi.NewDashboardHandlers(source, httpapi.DashboardOptions{
		Preferences: preferenceStore,
		Views:       viewStore,
		Reloader:    reloadScheduler,
		Layout:      pageLayout,
		Settle:      serverConfig.SettleDuration,
		Clock:       clock,
		Logger:      logger,
	})
	if handlersErr != nil {
		return nil, handlersErr
	}

	sessionStore := sessions.NewCookieStore([]byte(serverConfig.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAgeSeconds,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	clientIdentity := httpapi.ClientIdentity(sessionStore, logger)

	router.GET(healthRoute, dashboardHandlers.Healthz)
	if serverConfig.ServeMode.ServesDashboard() {
		registerFrontendRoutes(router, clientIdentity, dashboardHandlers)
	}
	if serverConfig.ServeMode.ServesAPI() {
		registerBackendRoutes(router, clientIdentity, dashboardHandlers, serverConfig.AdminBearerToken, serverConfig.AllowedOrigins)
	}

	return &serverRuntime{
		router:          router,
		reloadScheduler: reloadScheduler,
		rollupScheduler: rollupScheduler,
	}, nil
}

func (runtime *serverRuntime) serve(ctx context.Context, serverConfig ServerConfig, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           runtime.router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runtime.reloadScheduler.Run(groupContext)
	})
	group.Go(func() error {
		return runtime.rollupScheduler.Run(groupContext)
	})
	group.Go(func() error {
		logger.Info(logEventListening,
			zap.String(logFieldAddress, serverConfig.ApplicationAddress),
			zap.String(logFieldServeMode, string(serverConfig.ServeMode)),
		)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(loggerContextServer, zap.Error(serveErr))
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupContext.Done()
		logger.Info(logEventShutdown)
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownContext)
	})

	return group.Wait()
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.ReportPath == "" {
		missingParameters = append(missingParameters, flagNameReportPath)
	}

	if configuration.SessionSecret == "" {
		missingParameters = append(missingParameters, flagNameSessionSecret)
	}

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
