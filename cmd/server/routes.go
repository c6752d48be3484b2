package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/qareport/internal/httpapi"
)

const (
	rootRoute                 = "/"
	healthRoute               = "/healthz"
	dashboardRoute            = "/dashboard"
	apiRoutePrefix            = "/api"
	apiRouteCharts            = "/charts"
	apiRoutePreferences       = "/preferences"
	apiRouteThemePreference   = "/preferences/theme"
	apiRouteSidebarPreference = "/preferences/sidebar"
	apiRouteRefresh           = "/refresh"
	apiRouteViews             = "/views"
	apiRoutePreflightWildcard = "/*path"
	corsHeaderAuthorization   = "Authorization"
	corsHeaderContentType     = "Content-Type"
	corsMaxAge                = 12 * time.Hour
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType, httpapi.HeaderSnapshotID}
)

func registerFrontendRoutes(router *gin.Engine, clientIdentity gin.HandlerFunc, dashboardHandlers *httpapi.DashboardHandlers) {
	router.GET(rootRoute, func(context *gin.Context) {
		context.Redirect(http.StatusFound, dashboardRoute)
	})
	router.GET(dashboardRoute, clientIdentity, dashboardHandlers.Dashboard)
}

func registerBackendRoutes(
	router *gin.Engine,
	clientIdentity gin.HandlerFunc,
	dashboardHandlers *httpapi.DashboardHandlers,
	adminBearerToken string,
	allowedOrigins []string,
) {
	apiGroup := router.Group(apiRoutePrefix)
	if len(allowedOrigins) > 0 {
		apiCORS := newCredentialedCORS(allowedOrigins)
		apiGroup.Use(apiCORS)
		registerAPIPreflightRoutes(router, apiCORS)
	}
	apiGroup.Use(clientIdentity)
	apiGroup.GET(apiRouteCharts, dashboardHandlers.Charts)
	apiGroup.GET(apiRoutePreferences, dashboardHandlers.Preferences)
	apiGroup.POST(apiRouteThemePreference, dashboardHandlers.SetTheme)
	apiGroup.POST(apiRouteSidebarPreference, dashboardHandlers.SetSidebar)
	apiGroup.POST(apiRouteRefresh, dashboardHandlers.Refresh)
	apiGroup.GET(apiRouteViews, httpapi.AdminAuthMiddleware(adminBearerToken), dashboardHandlers.Views)
}

// newCredentialedCORS lets the listed origins call the API with the client
// cookie attached.
func newCredentialedCORS(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}

// registerAPIPreflightRoutes answers OPTIONS requests, which match no API route
// and would otherwise skip the group's CORS middleware.
func registerAPIPreflightRoutes(router *gin.Engine, apiCORS gin.HandlerFunc) {
	router.OPTIONS(apiRoutePrefix+apiRoutePreflightWildcard, apiCORS, func(context *gin.Context) {
		context.Status(http.StatusNoContent)
	})
}
