package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/widgets"
)

const (
	errorValueInvalidJSON         = "invalid_json"
	errorValueInvalidTheme        = "invalid_theme"
	errorValueMissingCollapsed    = "missing_collapsed"
	errorValuePreferencesDisabled = "preferences disabled"
	errorValueMissingClient       = "missing_client"
	errorValueSavePreference      = "save_failed"
	errorValueLoadPreferences     = "load_failed"

	logEventPreferenceSaveFailed = "preference_save_failed"
	logEventPreferenceLoadFailed = "preference_load_failed"
	logFieldClientID             = "client_id"
	logFieldPreferenceName       = "preference"
)

// PreferenceRepository persists widget preferences per client.
type PreferenceRepository interface {
	Get(ctx context.Context, clientID string, name string) (string, bool, error)
	Set(ctx context.Context, clientID string, name string, value string) error
	All(ctx context.Context, clientID string) (map[string]string, error)
}

// clientPreferenceStorage exposes one client's persisted preferences as the
// widgets' key/value storage.
type clientPreferenceStorage struct {
	ctx        context.Context
	repository PreferenceRepository
	clientID   string
}

func (storage clientPreferenceStorage) GetItem(key string) (string, bool, error) {
	return storage.repository.Get(storage.ctx, storage.clientID, key)
}

func (storage clientPreferenceStorage) SetItem(key string, value string) error {
	return storage.repository.Set(storage.ctx, storage.clientID, key, value)
}

var _ widgets.Storage = clientPreferenceStorage{}

type themeRequest struct {
	Theme string `json:"theme"`
}

type sidebarRequest struct {
	Collapsed *bool `json:"collapsed"`
}

type preferencesResponse struct {
	ClientID    string            `json:"clientId"`
	Preferences map[string]string `json:"preferences"`
}

// storageFor returns the persisted storage of the calling client, or a
// throwaway in-memory storage when preferences are not persisted.
func (handlers *DashboardHandlers) storageFor(context *gin.Context) widgets.Storage {
	clientID, ok := ClientIDFromContext(context)
	if handlers.preferences == nil || !ok {
		return widgets.NewMemoryStorage()
	}
	return clientPreferenceStorage{ctx: context.Request.Context(), repository: handlers.preferences, clientID: clientID}
}

func (handlers *DashboardHandlers) preferenceClient(context *gin.Context) (string, bool) {
	if handlers.preferences == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValuePreferencesDisabled})
		return "", false
	}
	clientID, ok := ClientIDFromContext(context)
	if !ok {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingClient})
		return "", false
	}
	return clientID, true
}

// Preferences lists the stored preferences of the calling client.
func (handlers *DashboardHandlers) Preferences(context *gin.Context) {
	clientID, ok := handlers.preferenceClient(context)
	if !ok {
		return
	}
	values, loadErr := handlers.preferences.All(context.Request.Context(), clientID)
	if loadErr != nil {
		handlers.logger.Error(logEventPreferenceLoadFailed, zap.String(logFieldClientID, clientID), zap.Error(loadErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueLoadPreferences})
		return
	}
	context.JSON(http.StatusOK, preferencesResponse{ClientID: clientID, Preferences: values})
}

// SetTheme stores an explicit theme choice, the persisted half of the dark
// mode toggle.
func (handlers *DashboardHandlers) SetTheme(context *gin.Context) {
	clientID, ok := handlers.preferenceClient(context)
	if !ok {
		return
	}
	var payload themeRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	theme := widgets.Theme(payload.Theme)
	if theme != widgets.ThemeDark && theme != widgets.ThemeLight {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidTheme})
		return
	}
	if !handlers.savePreference(context, clientID, widgets.PreferenceTheme, string(theme)) {
		return
	}
	context.JSON(http.StatusOK, gin.H{widgets.PreferenceTheme: theme})
}

// SetSidebar stores the sidebar collapsed state.
func (handlers *DashboardHandlers) SetSidebar(context *gin.Context) {
	clientID, ok := handlers.preferenceClient(context)
	if !ok {
		return
	}
	var payload sidebarRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if payload.Collapsed == nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingCollapsed})
		return
	}
	if !handlers.savePreference(context, clientID, widgets.PreferenceSidebarCollapsed, strconv.FormatBool(*payload.Collapsed)) {
		return
	}
	context.JSON(http.StatusOK, gin.H{widgets.PreferenceSidebarCollapsed: *payload.Collapsed})
}

func (handlers *DashboardHandlers) savePreference(context *gin.Context, clientID string, name string, value string) bool {
	if saveErr := handlers.preferences.Set(context.Request.Context(), clientID, name, value); saveErr != nil {
		handlers.logger.Error(logEventPreferenceSaveFailed,
			zap.String(logFieldClientID, clientID),
			zap.String(logFieldPreferenceName, name),
			zap.Error(saveErr),
		)
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSavePreference})
		return false
	}
	return true
}
