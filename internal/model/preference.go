package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	preferenceClientIDLength = 36
	preferenceNameMaxLength  = 64
	preferenceValueMaxLength = 256
)

var (
	ErrInvalidPreferenceClientID = errors.New("invalid_preference_client_id")
	ErrInvalidPreferenceName     = errors.New("invalid_preference_name")
	ErrInvalidPreferenceValue    = errors.New("invalid_preference_value")
)

// Preference is one stored widget preference of a browser client, such as the
// theme or the collapsed sidebar flag.
type Preference struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ClientID  string    `gorm:"not null;size:36;uniqueIndex:idx_preferences_client_name"`
	Name      string    `gorm:"not null;size:64;uniqueIndex:idx_preferences_client_name"`
	Value     string    `gorm:"not null;size:256"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// NewPreference constructs a validated Preference.
func NewPreference(clientID string, name string, value string) (Preference, error) {
	trimmedClientID := strings.TrimSpace(clientID)
	if len(trimmedClientID) != preferenceClientIDLength {
		return Preference{}, ErrInvalidPreferenceClientID
	}
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" || len(trimmedName) > preferenceNameMaxLength {
		return Preference{}, fmt.Errorf("%w: %q", ErrInvalidPreferenceName, name)
	}
	if len(value) > preferenceValueMaxLength {
		return Preference{}, fmt.Errorf("%w: longer than %d bytes", ErrInvalidPreferenceValue, preferenceValueMaxLength)
	}
	return Preference{
		ID:       uuid.NewString(),
		ClientID: trimmedClientID,
		Name:     trimmedName,
		Value:    value,
	}, nil
}
