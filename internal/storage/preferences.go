package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/qareport/internal/model"
)

const (
	errorMessageMissingDatabase = "storage: missing database"
	errorMessageReadPreference  = "storage: read preference"
	errorMessageWritePreference = "storage: write preference"
	errorMessageListPreferences = "storage: list preferences"

	columnClientID    = "client_id"
	columnName        = "name"
	columnValue       = "value"
	columnUpdatedAt   = "updated_at"
	queryClientName   = "client_id = ? AND name = ?"
	queryClientID     = "client_id = ?"
	orderByNameColumn = "name"
)

// ErrMissingDatabase indicates a store was built without a database handle.
var ErrMissingDatabase = errors.New(errorMessageMissingDatabase)

// PreferenceStore keeps widget preferences per browser client.
type PreferenceStore struct {
	database *gorm.DB
}

// NewPreferenceStore builds a PreferenceStore on a migrated database.
func NewPreferenceStore(database *gorm.DB) (*PreferenceStore, error) {
	if database == nil {
		return nil, ErrMissingDatabase
	}
	return &PreferenceStore{database: database}, nil
}

// Get returns the stored value of name for clientID.
func (store *PreferenceStore) Get(ctx context.Context, clientID string, name string) (string, bool, error) {
	var preference model.Preference
	result := store.database.WithContext(ctx).
		Where(queryClientName, clientID, name).
		Limit(1).
		Find(&preference)
	if result.Error != nil {
		return "", false, fmt.Errorf("%s: %w", errorMessageReadPreference, result.Error)
	}
	if result.RowsAffected == 0 {
		return "", false, nil
	}
	return preference.Value, true, nil
}

// Set stores value under name for clientID, replacing an earlier value.
func (store *PreferenceStore) Set(ctx context.Context, clientID string, name string, value string) error {
	preference, validateErr := model.NewPreference(clientID, name, value)
	if validateErr != nil {
		return validateErr
	}
	upsertErr := store.database.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: columnClientID}, {Name: columnName}},
			DoUpdates: clause.AssignmentColumns([]string{columnValue, columnUpdatedAt}),
		}).
		Create(&preference).Error
	if upsertErr != nil {
		return fmt.Errorf("%s: %w", errorMessageWritePreference, upsertErr)
	}
	return nil
}

// All returns every preference stored for clientID.
func (store *PreferenceStore) All(ctx context.Context, clientID string) (map[string]string, error) {
	var preferences []model.Preference
	if findErr := store.database.WithContext(ctx).
		Where(queryClientID, clientID).
		Order(orderByNameColumn).
		Find(&preferences).Error; findErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageListPreferences, findErr)
	}
	values := make(map[string]string, len(preferences))
	for _, preference := range preferences {
		values[preference.Name] = preference.Value
	}
	return values, nil
}
