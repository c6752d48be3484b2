// Package widgets wires the dashboard's peripheral page behaviour: sidebar,
// dropdown menus, date range picker, scroll reveals, dark mode and table search.
// Every initializer reports through a capability.Result whether the page carried
// the elements it binds to.
package widgets

import (
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
	"github.com/MarkoPoloResearchLab/qareport/internal/task"
)

// Module names reported through capability results.
const (
	ModuleSidebar         = "sidebar"
	ModuleDropdowns       = "dropdowns"
	ModuleDateRangePicker = "date_range_picker"
	ModuleScrollEffects   = "scroll_effects"
	ModuleDarkMode        = "dark_mode"
	ModuleTableFilters    = "table_filters"
)

const (
	logEventStorageReadFailed  = "preference_read_failed"
	logEventStorageWriteFailed = "preference_write_failed"
	logFieldPreferenceKey      = "key"
)

// Storage is the per-browser key/value preference store.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key string, value string) error
}

// RefreshFunc is invoked with a newly selected date range.
type RefreshFunc func(startDate string, endDate string)

// Environment carries everything the widgets bind to. Storage, Clock and Logger
// fall back to in-memory, wall clock and no-op implementations when nil.
type Environment struct {
	Document    *dom.Document
	Storage     Storage
	Clock       task.Clock
	RangePicker RangePicker
	// PrefersDark is the system colour scheme preference.
	PrefersDark bool
	Refresh     RefreshFunc
	Logger      *zap.Logger
}

func (environment Environment) normalized() Environment {
	if environment.Storage == nil {
		environment.Storage = NewMemoryStorage()
	}
	if environment.Clock == nil {
		environment.Clock = task.SystemClock{}
	}
	if environment.Logger == nil {
		environment.Logger = zap.NewNop()
	}
	return environment
}

func (environment Environment) readPreference(key string) (string, bool) {
	value, found, readErr := environment.Storage.GetItem(key)
	if readErr != nil {
		environment.Logger.Warn(logEventStorageReadFailed, zap.String(logFieldPreferenceKey, key), zap.Error(readErr))
		return "", false
	}
	return value, found
}

func (environment Environment) writePreference(key string, value string) {
	if writeErr := environment.Storage.SetItem(key, value); writeErr != nil {
		environment.Logger.Warn(logEventStorageWriteFailed, zap.String(logFieldPreferenceKey, key), zap.Error(writeErr))
	}
}

// InitAll runs every widget initializer in page order.
func InitAll(environment Environment) capability.Report {
	environment = environment.normalized()
	return capability.Report{
		InitSidebar(environment),
		InitDropdowns(environment),
		InitDateRangePicker(environment),
		InitScrollEffects(environment),
		InitDarkMode(environment),
		InitTableFilters(environment),
	}
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mutex sync.RWMutex
	items map[string]string
}

// NewMemoryStorage builds an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (storage *MemoryStorage) GetItem(key string) (string, bool, error) {
	storage.mutex.RLock()
	defer storage.mutex.RUnlock()
	value, found := storage.items[key]
	return value, found, nil
}

func (storage *MemoryStorage) SetItem(key string, value string) error {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()
	storage.items[key] = value
	return nil
}
