package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicwatch/internal/utils"
	"civicwatch/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	reportTableName = "civicwatch.reports"

	DefaultFeedLimit = 50
	MaxFeedLimit     = 200
)

// openDedupeConflict must repeat the column list and predicate of
// reports_open_dedupe_idx (migrations/00001_init.sql) word for word, or
// Postgres cannot infer the arbiter index and the insert fails.
// A conflicting insert refreshes the open report instead and hands back its
// id; xmax is zero only for freshly inserted rows.
const openDedupeConflict = "ON CONFLICT (device_id, issue_type) WHERE status IN ('Submitted', 'In Progress') " +
	"DO UPDATE SET last_seen_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at " +
	"RETURNING id, (xmax = 0) AS inserted"

var reportColumns = utils.StructTagValues(types.Report{})

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func openStatuses() []string {
	out := make([]string, len(types.OpenReportStatuses))
	for i, s := range types.OpenReportStatuses {
		out[i] = string(s)
	}
	return out
}

func openReportQuery(deviceID, issueType string) (string, []any, error) {
	return psql().Select(reportColumns...).From(reportTableName).
		Where(sq.Eq{
			"device_id":  deviceID,
			"issue_type": issueType,
			"status":     openStatuses(),
		}).
		OrderBy("created_at asc").
		Limit(1).
		ToSql()
}

// OpenReport returns the oldest unresolved report for the device and issue type.
func (r *ReportRepository) OpenReport(ctx context.Context, deviceID, issueType string) (*types.Report, error) {

	query, args, err := openReportQuery(deviceID, issueType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate open report query: %w", err)
	}

	var report = new(types.Report)
	err = pgxscan.Get(ctx, r.pool, report, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrReportNotFound
	}

	return report, nil
}

func (r *ReportRepository) Report(ctx context.Context, reportID string) (*types.Report, error) {

	query, args, err := psql().Select(reportColumns...).From(reportTableName).
		Where(sq.Eq{"id": reportID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate report query: %w", err)
	}

	var report = new(types.Report)
	err = pgxscan.Get(ctx, r.pool, report, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrReportNotFound
	}

	return report, nil
}

func reportsQuery(filter types.ReportFilter) (string, []any, error) {
	where := sq.Eq{}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	if filter.IssueType != "" {
		where["issue_type"] = filter.IssueType
	}
	if filter.DeviceID != "" {
		where["device_id"] = filter.DeviceID
	}
	if filter.Source != "" {
		where["source"] = filter.Source
	}

	limit := filter.Limit
	if limit == 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	builder := psql().Select(reportColumns...).From(reportTableName)
	if len(where) > 0 {
		builder = builder.Where(where)
	}

	return builder.OrderBy("created_at desc").Limit(limit).ToSql()
}

// Reports is the feed query, newest first.
func (r *ReportRepository) Reports(ctx context.Context, filter types.ReportFilter) ([]*types.Report, error) {

	query, args, err := reportsQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reports query: %w", err)
	}

	var reports = make([]*types.Report, 0)
	err = pgxscan.Select(ctx, r.pool, &reports, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}

	return reports, nil
}

// LatestReportsByDevice returns the newest report of every device, keyed by device id.
func (r *ReportRepository) LatestReportsByDevice(ctx context.Context) (map[string]*types.Report, error) {

	query, args, err := psql().Select(reportColumns...).
		Options("DISTINCT ON (device_id)").
		From(reportTableName).
		Where(sq.NotEq{"device_id": nil}).
		OrderBy("device_id", "created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate latest reports query: %w", err)
	}

	var reports = make([]*types.Report, 0)
	err = pgxscan.Select(ctx, r.pool, &reports, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest reports: %w", err)
	}

	out := make(map[string]*types.Report, len(reports))
	for _, report := range reports {
		out[utils.PtrString(report.DeviceID)] = report
	}

	return out, nil
}

func createReportQuery(report *types.Report) (string, []any, error) {
	return psql().Insert(reportTableName).
		SetMap(utils.StructToMap(report)).
		Suffix(openDedupeConflict).
		ToSql()
}

// CreateReport assigns the report an id and inserts it. When an open report
// already holds the device and issue type, that report's last_seen_at is
// refreshed instead, report.ID is set to its id and inserted is false.
func (r *ReportRepository) CreateReport(ctx context.Context, report *types.Report) (inserted bool, err error) {

	now := time.Now()
	report.ID = utils.NanoID()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	query, args, err := createReportQuery(report)
	if err != nil {
		return false, fmt.Errorf("failed to generate insert report query: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&report.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to create report: %w", err)
	}

	return inserted, nil

}

// TouchReport records that the incident was sighted again at seenAt.
func (r *ReportRepository) TouchReport(ctx context.Context, reportID string, seenAt time.Time) error {

	query, args, err := psql().Update(reportTableName).
		Set("last_seen_at", seenAt).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": reportID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate touch report query for report %s: %w", reportID, err)
	}

	return r.execOne(ctx, query, args, "failed to touch report")

}

func (r *ReportRepository) UpdateStatus(ctx context.Context, reportID string, status types.ReportStatus) error {

	query, args, err := psql().Update(reportTableName).
		Set("status", status).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": reportID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update status query for report %s: %w", reportID, err)
	}

	err = r.execOne(ctx, query, args, "failed to update report status")
	if isUniqueViolation(err) {
		return types.ErrOpenReportExists
	}

	return err

}

// Upvote increments the report's upvote count and returns the new total.
func (r *ReportRepository) Upvote(ctx context.Context, reportID string) (int, error) {

	query, args, err := psql().Update(reportTableName).
		Set("upvote_count", sq.Expr("upvote_count + 1")).
		Where(sq.Eq{"id": reportID}).
		Suffix("RETURNING upvote_count").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate upvote query for report %s: %w", reportID, err)
	}

	var count int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, types.ErrReportNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to upvote report: %w", err)
	}

	return count, nil

}

func (r *ReportRepository) DeleteReport(ctx context.Context, reportID string) error {

	query, args, err := psql().Delete(reportTableName).Where(sq.Eq{"id": reportID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete report query for report %s: %w", reportID, err)
	}

	return r.execOne(ctx, query, args, "failed to delete report")

}

// Summary aggregates report counts for the dashboard charts.
func (r *ReportRepository) Summary(ctx context.Context) (*types.ReportSummary, error) {

	summary := new(types.ReportSummary)

	query, args, err := psql().Select("count(*)").From(reportTableName).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate report count query: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&summary.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	groups := []struct {
		column string
		target *[]types.CountByKey
	}{
		{"status", &summary.ByStatus},
		{"issue_type", &summary.ByIssue},
		{"severity", &summary.BySeverity},
	}

	for _, group := range groups {
		query, args, err := countByQuery(group.column)
		if err != nil {
			return nil, fmt.Errorf("failed to generate count by %s query: %w", group.column, err)
		}

		counts := make([]types.CountByKey, 0)
		err = pgxscan.Select(ctx, r.pool, &counts, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to count reports by %s: %w", group.column, err)
		}
		*group.target = counts
	}

	return summary, nil
}

func countByQuery(column string) (string, []any, error) {
	return psql().
		Select(column+" AS key", "count(*) AS count").
		From(reportTableName).
		GroupBy(column).
		OrderBy("count desc", column).
		ToSql()
}

func (r *ReportRepository) execOne(ctx context.Context, query string, args []any, msg string) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return utils.ErrorWrapOrNil(err, msg)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrReportNotFound
	}

	return nil
}
