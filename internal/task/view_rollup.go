package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/qareport/internal/model"
)

const (
	logEventViewRollupInvalid    = "view_rollup_invalid"
	logEventViewRollupSaveFailed = "view_rollup_save_failed"
	logEventViewRollupFailed     = "view_rollup_failed"
	logFieldRollupDate           = "date"

	rollupDateLayout    = "2006-01-02"
	rollupAggregateSQL  = "COUNT(*) AS views, COUNT(DISTINCT NULLIF(client_id, '')) AS unique_clients, COALESCE(SUM(CASE WHEN theme = 'dark' THEN 1 ELSE 0 END), 0) AS dark_views"
	rollupWindowQuery   = "rendered_at >= ? AND rendered_at < ?"
	rollupDateQuery     = "date = ?"
	rollupPruneQuery    = "rendered_at < ?"
	columnViews         = "views"
	columnUniqueClients = "unique_clients"
	columnDarkViews     = "dark_views"
	day                 = 24 * time.Hour
)

// ViewRollupConfig defines rollup behaviour.
type ViewRollupConfig struct {
	RetentionDays int
}

// ViewRollupJob aggregates yesterday's report views into a daily rollup and
// prunes views older than the retention window.
type ViewRollupJob struct {
	database *gorm.DB
	clock    Clock
	logger   *zap.Logger
	config   ViewRollupConfig
}

// NewViewRollupJob builds a ViewRollupJob. A nil clock means SystemClock.
func NewViewRollupJob(database *gorm.DB, clock Clock, logger *zap.Logger, config ViewRollupConfig) *ViewRollupJob {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewRollupJob{
		database: database,
		clock:    clock,
		logger:   logger,
		config:   config,
	}
}

// Run executes aggregation then pruning.
func (job *ViewRollupJob) Run(ctx context.Context) error {
	if err := job.aggregatePreviousDay(ctx); err != nil {
		return err
	}
	return job.pruneOldViews(ctx)
}

// Runner adapts the job to a Scheduler, logging failures.
func (job *ViewRollupJob) Runner() RunnerFunc {
	return func(ctx context.Context) {
		if err := job.Run(ctx); err != nil {
			job.logger.Warn(logEventViewRollupFailed, zap.Error(err))
		}
	}
}

func (job *ViewRollupJob) aggregatePreviousDay(ctx context.Context) error {
	yesterday := job.clock.Now().UTC().Add(-day)
	start := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(day)

	var aggregate struct {
		Views         int64
		UniqueClients int64
		DarkViews     int64
	}
	err := job.database.WithContext(ctx).
		Model(&model.ReportView{}).
		Select(rollupAggregateSQL).
		Where(rollupWindowQuery, start, end).
		Scan(&aggregate).Error
	if err != nil {
		return err
	}
	if aggregate.Views == 0 {
		return nil
	}

	rollup, rollupErr := model.NewReportViewRollup(start, aggregate.Views, aggregate.UniqueClients, aggregate.DarkViews)
	if rollupErr != nil {
		job.logger.Warn(logEventViewRollupInvalid, zap.Error(rollupErr), zap.String(logFieldRollupDate, start.Format(rollupDateLayout)))
		return nil
	}
	if err := job.database.WithContext(ctx).
		Where(rollupDateQuery, rollup.Date).
		Assign(map[string]any{
			columnViews:         rollup.Views,
			columnUniqueClients: rollup.UniqueClients,
			columnDarkViews:     rollup.DarkViews,
		}).
		FirstOrCreate(&rollup).Error; err != nil {
		job.logger.Warn(logEventViewRollupSaveFailed, zap.Error(err), zap.String(logFieldRollupDate, start.Format(rollupDateLayout)))
	}
	return nil
}

func (job *ViewRollupJob) pruneOldViews(ctx context.Context) error {
	if job.config.RetentionDays <= 0 {
		return nil
	}
	cutoff := job.clock.Now().UTC().Add(-time.Duration(job.config.RetentionDays) * day).Truncate(day)
	return job.database.WithContext(ctx).Where(rollupPruneQuery, cutoff).Delete(&model.ReportView{}).Error
}
