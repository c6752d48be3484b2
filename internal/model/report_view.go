package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ViewStatusRendered = "rendered"

	viewIDLength           = 36
	viewThemeMaxLength     = 16
	viewUserAgentMaxLength = 400
)

var (
	ErrInvalidViewSnapshotID = errors.New("invalid_view_snapshot_id")
	ErrInvalidViewClientID   = errors.New("invalid_view_client_id")
	ErrInvalidViewRollup     = errors.New("invalid_view_rollup")
)

// ReportView records one dashboard snapshot served to a client.
type ReportView struct {
	ID               string    `gorm:"primaryKey;size:36"`
	SnapshotID       string    `gorm:"not null;size:36;uniqueIndex"`
	ClientID         string    `gorm:"size:36;index"`
	Theme            string    `gorm:"size:16"`
	SidebarCollapsed bool      `gorm:"not null;default:false"`
	AppliedModules   int       `gorm:"not null"`
	PendingTasks     int       `gorm:"not null"`
	UserAgent        string    `gorm:"size:400"`
	Status           string    `gorm:"size:20"`
	RenderedAt       time.Time `gorm:"not null;index"`
}

// ReportViewInput holds the facts of a served snapshot.
type ReportViewInput struct {
	SnapshotID       string
	ClientID         string
	Theme            string
	SidebarCollapsed bool
	AppliedModules   int
	PendingTasks     int
	UserAgent        string
	Rendered         time.Time
}

// NewReportView constructs a validated ReportView.
func NewReportView(input ReportViewInput) (ReportView, error) {
	snapshotID := strings.TrimSpace(input.SnapshotID)
	if len(snapshotID) != viewIDLength {
		return ReportView{}, ErrInvalidViewSnapshotID
	}
	clientID := strings.TrimSpace(input.ClientID)
	if clientID != "" && len(clientID) != viewIDLength {
		return ReportView{}, ErrInvalidViewClientID
	}
	rendered := input.Rendered
	if rendered.IsZero() {
		rendered = time.Now().UTC()
	}
	return ReportView{
		ID:               uuid.NewString(),
		SnapshotID:       snapshotID,
		ClientID:         clientID,
		Theme:            truncateString(input.Theme, viewThemeMaxLength),
		SidebarCollapsed: input.SidebarCollapsed,
		AppliedModules:   input.AppliedModules,
		PendingTasks:     input.PendingTasks,
		UserAgent:        truncateString(input.UserAgent, viewUserAgentMaxLength),
		Status:           ViewStatusRendered,
		RenderedAt:       rendered.UTC(),
	}, nil
}

// ReportViewRollup aggregates report views per UTC day.
type ReportViewRollup struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Date          time.Time `gorm:"not null;uniqueIndex"` // UTC midnight
	Views         int64     `gorm:"not null"`
	UniqueClients int64     `gorm:"not null"`
	DarkViews     int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// NewReportViewRollup constructs a rollup for the day containing date.
func NewReportViewRollup(date time.Time, views int64, uniqueClients int64, darkViews int64) (ReportViewRollup, error) {
	if date.IsZero() {
		return ReportViewRollup{}, fmt.Errorf("%w: missing date", ErrInvalidViewRollup)
	}
	if views < 0 || uniqueClients < 0 || darkViews < 0 {
		return ReportViewRollup{}, fmt.Errorf("%w: negative counts", ErrInvalidViewRollup)
	}
	if uniqueClients > views || darkViews > views {
		return ReportViewRollup{}, fmt.Errorf("%w: counts exceed views", ErrInvalidViewRollup)
	}
	utcDate := date.UTC()
	return ReportViewRollup{
		ID:            uuid.NewString(),
		Date:          time.Date(utcDate.Year(), utcDate.Month(), utcDate.Day(), 0, 0, 0, 0, time.UTC),
		Views:         views,
		UniqueClients: uniqueClients,
		DarkViews:     darkViews,
	}, nil
}

func truncateString(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
