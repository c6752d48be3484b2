package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/qareport/internal/model"
	"github.com/MarkoPoloResearchLab/qareport/internal/storage"
	"github.com/MarkoPoloResearchLab/qareport/internal/testutil"
	"github.com/MarkoPoloResearchLab/qareport/internal/widgets"
)

const (
	testUnsupportedDriverName        = "unsupported-driver"
	testUnsupportedDriverDescription = "unsupported driver"
	testMissingDriverDescription     = "missing driver"
	testMissingDataSourceDescription = "missing data source"
)

func TestOpenDatabaseWithSQLiteConfiguration(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(t, openErr)
	database = testutil.ConfigureDatabaseLogger(t, database)
	require.NoError(t, storage.AutoMigrate(database))
	require.NoError(t, storage.AutoMigrate(database))

	preference, err := model.NewPreference(storage.NewID(), widgets.PreferenceTheme, string(widgets.ThemeDark))
	require.NoError(t, err)
	require.NoError(t, database.Create(&preference).Error)

	var fetched model.Preference
	require.NoError(t, database.First(&fetched, "id = ?", preference.ID).Error)
	require.Equal(t, "dark", fetched.Value)
}

func TestOpenDatabaseValidation(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	testCases := []struct {
		name              string
		configuration     storage.Config
		expectedRootError error
	}{
		{
			name: testMissingDriverDescription,
			configuration: storage.Config{
				DriverName:     "",
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrMissingDatabaseDriverName,
		},
		{
			name: testUnsupportedDriverDescription,
			configuration: storage.Config{
				DriverName:     testUnsupportedDriverName,
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrUnsupportedDatabaseDriver,
		},
		{
			name: testMissingDataSourceDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNameSQLite,
				DataSourceName: "",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			_, openErr := storage.OpenDatabase(testCase.configuration)
			require.Error(testingT, openErr)
			require.True(testingT, errors.Is(openErr, testCase.expectedRootError))
		})
	}
}

func TestPreferenceStoreUpsertsPerClient(t *testing.T) {
	database := testutil.NewSQLiteTestDatabase(t).Open(t)
	store, storeErr := storage.NewPreferenceStore(database)
	require.NoError(t, storeErr)
	ctx := context.Background()
	firstClient := storage.NewID()
	secondClient := storage.NewID()

	_, found, getErr := store.Get(ctx, firstClient, widgets.PreferenceTheme)
	require.NoError(t, getErr)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, firstClient, widgets.PreferenceTheme, "dark"))
	require.NoError(t, store.Set(ctx, firstClient, widgets.PreferenceTheme, "light"))
	require.NoError(t, store.Set(ctx, firstClient, widgets.PreferenceSidebarCollapsed, "true"))
	require.NoError(t, store.Set(ctx, secondClient, widgets.PreferenceTheme, "dark"))

	value, found, getErr := store.Get(ctx, firstClient, widgets.PreferenceTheme)
	require.NoError(t, getErr)
	require.True(t, found)
	require.Equal(t, "light", value)

	all, listErr := store.All(ctx, firstClient)
	require.NoError(t, listErr)
	require.Equal(t, map[string]string{"sidebarCollapsed": "true", "theme": "light"}, all)

	var rows int64
	require.NoError(t, database.Model(&model.Preference{}).Count(&rows).Error)
	require.Equal(t, int64(3), rows)
}

func TestPreferenceStoreRejectsInvalidInput(t *testing.T) {
	_, storeErr := storage.NewPreferenceStore(nil)
	require.ErrorIs(t, storeErr, storage.ErrMissingDatabase)

	store, storeErr := storage.NewPreferenceStore(testutil.NewSQLiteTestDatabase(t).Open(t))
	require.NoError(t, storeErr)
	require.ErrorIs(t, store.Set(context.Background(), "not-a-client", "theme", "dark"), model.ErrInvalidPreferenceClientID)
	require.ErrorIs(t, store.Set(context.Background(), storage.NewID(), "", "dark"), model.ErrInvalidPreferenceName)
}

func TestViewStoreRecordsAndCounts(t *testing.T) {
	database := testutil.NewSQLiteTestDatabase(t).Open(t)
	store, storeErr := storage.NewViewStore(database)
	require.NoError(t, storeErr)
	ctx := context.Background()
	now := time.Now().UTC()

	_, recordErr := store.Record(ctx, model.ReportViewInput{SnapshotID: storage.NewID(), Theme: "dark", Rendered: now.Add(-2 * time.Hour)})
	require.NoError(t, recordErr)
	recent, recordErr := store.Record(ctx, model.ReportViewInput{SnapshotID: storage.NewID(), ClientID: storage.NewID(), Rendered: now})
	require.NoError(t, recordErr)
	require.Equal(t, model.ViewStatusRendered, recent.Status)

	_, recordErr = store.Record(ctx, model.ReportViewInput{SnapshotID: recent.SnapshotID})
	require.Error(t, recordErr)
	_, recordErr = store.Record(ctx, model.ReportViewInput{})
	require.ErrorIs(t, recordErr, model.ErrInvalidViewSnapshotID)

	count, countErr := store.CountSince(ctx, now.Add(-time.Hour))
	require.NoError(t, countErr)
	require.Equal(t, int64(1), count)
}

func TestViewStoreRollupsFromDay(t *testing.T) {
	database := testutil.NewSQLiteTestDatabase(t).Open(t)
	store, storeErr := storage.NewViewStore(database)
	require.NoError(t, storeErr)
	firstDay := time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)

	for offset := 0; offset < 3; offset++ {
		rollup, rollupErr := model.NewReportViewRollup(firstDay.AddDate(0, 0, offset), int64(10+offset), 2, 1)
		require.NoError(t, rollupErr)
		require.NoError(t, database.Create(&rollup).Error)
	}

	rollups, listErr := store.Rollups(context.Background(), firstDay.Add(36*time.Hour))
	require.NoError(t, listErr)
	require.Len(t, rollups, 2)
	require.Equal(t, int64(11), rollups[0].Views)
	require.Equal(t, int64(12), rollups[1].Views)
}
