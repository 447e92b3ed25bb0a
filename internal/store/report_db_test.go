package store

import (
	"context"
	"os"
	"testing"
	"time"

	"civicwatch/internal/db"
	"civicwatch/internal/utils"
	"civicwatch/pkg/types"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to CIVICWATCH_TEST_DATABASE_URL and applies migrations.
// Tests using it are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	databaseURL := os.Getenv("CIVICWATCH_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("CIVICWATCH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, &types.Config{DatabaseURL: databaseURL})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func TestReportRepository_CreateReportFoldsIntoOpenReport(t *testing.T) {
	pool := testPool(t)
	repo := NewReportRepository(pool)
	ctx := context.Background()

	deviceID := "test-" + utils.NanoID()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM civicwatch.reports WHERE device_id = $1", deviceID)
	})

	newReport := func(at time.Time) *types.Report {
		return &types.Report{
			DeviceID:  utils.StringPtr(deviceID),
			UserID:    types.ReportUserIDDevice,
			Source:    types.ReportSourceIOT,
			IssueType: "Pothole",
			Severity:  types.SeverityHigh,
			Status:    types.ReportStatusSubmitted,
			CreatedAt: at,
		}
	}

	first := newReport(time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond))
	inserted, err := repo.CreateReport(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	secondAt := time.Now().UTC().Truncate(time.Millisecond)
	second := newReport(secondAt)
	inserted, err = repo.CreateReport(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)

	stored, err := repo.Report(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSeenAt)
	assert.True(t, secondAt.Equal(*stored.LastSeenAt))

	// Once resolved, the next sighting opens a new incident.
	require.NoError(t, repo.UpdateStatus(ctx, first.ID, types.ReportStatusResolved))

	third := newReport(time.Now().UTC())
	inserted, err = repo.CreateReport(ctx, third)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, first.ID, third.ID)

	// Reopening the resolved one would give the pair two open incidents.
	err = repo.UpdateStatus(ctx, first.ID, types.ReportStatusSubmitted)
	assert.ErrorIs(t, err, types.ErrOpenReportExists)
}
