package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"civicwatch/internal/utils"
	"civicwatch/pkg/types"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReportQuery(t *testing.T) {
	query, args, err := openReportQuery("cam-001", "Pothole")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "SELECT id, device_id, "), query)
	assert.Contains(t, query, "FROM civicwatch.reports WHERE device_id = $1 AND issue_type = $2 AND status IN ($3,$4)")
	assert.True(t, strings.HasSuffix(query, "ORDER BY created_at asc LIMIT 1"), query)
	assert.Equal(t, []any{"cam-001", "Pothole", "Submitted", "In Progress"}, args)
}

func TestReportsQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    types.ReportFilter
		wantWhere string
		wantArgs  []any
		wantLimit string
	}{
		{
			name:      "no filter uses default limit",
			filter:    types.ReportFilter{},
			wantLimit: "LIMIT 50",
		},
		{
			name:      "status and device",
			filter:    types.ReportFilter{Status: types.ReportStatusSubmitted, DeviceID: "cam-002", Limit: 10},
			wantWhere: "WHERE device_id = $1 AND status = $2",
			wantArgs:  []any{"cam-002", types.ReportStatusSubmitted},
			wantLimit: "LIMIT 10",
		},
		{
			name:      "limit is capped",
			filter:    types.ReportFilter{Source: types.ReportSourceIOT, Limit: 5000},
			wantWhere: "WHERE source = $1",
			wantArgs:  []any{types.ReportSourceIOT},
			wantLimit: "LIMIT 200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := reportsQuery(tt.filter)
			require.NoError(t, err)

			if tt.wantWhere == "" {
				assert.NotContains(t, query, "WHERE")
				assert.Empty(t, args)
			} else {
				assert.Contains(t, query, tt.wantWhere)
				assert.Equal(t, tt.wantArgs, args)
			}
			assert.Contains(t, query, "ORDER BY created_at desc")
			assert.True(t, strings.HasSuffix(query, tt.wantLimit), query)
		})
	}
}

// The conflict target only resolves to reports_open_dedupe_idx when its
// columns and predicate match the index definition; a mismatch makes every
// insert fail. TestReportRepository_CreateReportFoldsIntoOpenReport checks it
// against a real database.
func TestCreateReportQuery(t *testing.T) {
	report := &types.Report{
		ID:        "abc",
		DeviceID:  utils.StringPtr("cam-001"),
		IssueType: "Pothole",
		Status:    types.ReportStatusSubmitted,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	query, args, err := createReportQuery(report)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO civicwatch.reports ("), query)
	assert.True(t, strings.HasSuffix(query, openDedupeConflict), query)
	assert.Contains(t, query, "DO UPDATE SET last_seen_at = EXCLUDED.created_at")
	assert.True(t, strings.HasSuffix(query, "RETURNING id, (xmax = 0) AS inserted"), query)
	assert.Len(t, args, len(reportColumns))
	assert.Contains(t, args, "abc")
	assert.Contains(t, args, "Pothole")
}

func TestOpenDedupeConflictMatchesIndex(t *testing.T) {
	migration, err := os.ReadFile("../db/migrations/00001_init.sql")
	require.NoError(t, err)

	const (
		columns   = "(device_id, issue_type)"
		predicate = "WHERE status IN ('Submitted', 'In Progress')"
	)

	assert.Contains(t, string(migration), "reports_open_dedupe_idx ON civicwatch.reports "+columns)
	assert.Contains(t, string(migration), predicate)
	assert.True(t, strings.HasPrefix(openDedupeConflict, "ON CONFLICT "+columns+" "+predicate+" "), openDedupeConflict)

	for _, status := range types.OpenReportStatuses {
		assert.Contains(t, predicate, "'"+string(status)+"'")
	}
}

func TestCountByQuery(t *testing.T) {
	query, args, err := countByQuery("severity")
	require.NoError(t, err)

	assert.Equal(t, "SELECT severity AS key, count(*) AS count FROM civicwatch.reports GROUP BY severity ORDER BY count desc, severity", query)
	assert.Empty(t, args)
}

func TestUpsertDeviceQuery(t *testing.T) {
	device := &types.Device{
		ID:     "cam-001",
		Name:   "Main St. Junction Camera",
		Status: types.DeviceStatusActive,
	}

	query, args, err := upsertDeviceQuery(device)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO civicwatch.devices (created_at,id,lat,lng,location_name,name,status,updated_at)"), query)
	assert.True(t, strings.HasSuffix(query, "ON CONFLICT (id) DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, location_name = EXCLUDED.location_name, name = EXCLUDED.name, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at"), query)
	assert.NotContains(t, query, "last_ping_at")
	assert.Len(t, args, 8)
}

func TestBuildUpdateClause(t *testing.T) {
	clause := buildUpdateClause(map[string]any{"status": 1, "name": 2})
	assert.Equal(t, "name = EXCLUDED.name, status = EXCLUDED.status", clause)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgUniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}
