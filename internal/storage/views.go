package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/qareport/internal/model"
)

const (
	errorMessageRecordView  = "storage: record report view"
	errorMessageCountViews  = "storage: count report views"
	errorMessageListRollups = "storage: list report view rollups"
	queryRenderedSince      = "rendered_at >= ?"
	queryRollupDateFrom     = "date >= ?"
	orderByRollupDateColumn = "date"
)

// ViewStore records served dashboard snapshots.
type ViewStore struct {
	database *gorm.DB
}

// NewViewStore builds a ViewStore on a migrated database.
func NewViewStore(database *gorm.DB) (*ViewStore, error) {
	if database == nil {
		return nil, ErrMissingDatabase
	}
	return &ViewStore{database: database}, nil
}

// Record validates and stores one served snapshot.
func (store *ViewStore) Record(ctx context.Context, input model.ReportViewInput) (model.ReportView, error) {
	view, validateErr := model.NewReportView(input)
	if validateErr != nil {
		return model.ReportView{}, validateErr
	}
	if createErr := store.database.WithContext(ctx).Create(&view).Error; createErr != nil {
		return model.ReportView{}, fmt.Errorf("%s: %w", errorMessageRecordView, createErr)
	}
	return view, nil
}

// CountSince counts views rendered at or after since.
func (store *ViewStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if countErr := store.database.WithContext(ctx).
		Model(&model.ReportView{}).
		Where(queryRenderedSince, since.UTC()).
		Count(&count).Error; countErr != nil {
		return 0, fmt.Errorf("%s: %w", errorMessageCountViews, countErr)
	}
	return count, nil
}

// Rollups returns the daily rollups from the day containing since onward.
func (store *ViewStore) Rollups(ctx context.Context, since time.Time) ([]model.ReportViewRollup, error) {
	utcSince := since.UTC()
	from := time.Date(utcSince.Year(), utcSince.Month(), utcSince.Day(), 0, 0, 0, 0, time.UTC)
	var rollups []model.ReportViewRollup
	if findErr := store.database.WithContext(ctx).
		Where(queryRollupDateFrom, from).
		Order(orderByRollupDateColumn).
		Find(&rollups).Error; findErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageListRollups, findErr)
	}
	return rollups, nil
}
