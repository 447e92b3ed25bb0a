package store

import (
	"context"
	"fmt"
	"time"

	"civicwatch/internal/utils"
	"civicwatch/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const deviceTableName = "civicwatch.devices"

var deviceColumns = utils.StructTagValues(types.Device{})

type DeviceRepository struct {
	pool *pgxpool.Pool
}

func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

func (r *DeviceRepository) Devices(ctx context.Context) ([]*types.Device, error) {
	query, args, err := psql().
		Select(deviceColumns...).
		From(deviceTableName).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate devices query: %w", err)
	}

	var devices = make([]*types.Device, 0)
	err = pgxscan.Select(ctx, r.pool, &devices, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch devices: %w", err)
	}

	return devices, nil
}

// Ping refreshes the device's last heartbeat. Unknown devices yield types.ErrDeviceNotFound.
func (r *DeviceRepository) Ping(ctx context.Context, deviceID string, at time.Time) error {
	query, args, err := psql().
		Update(deviceTableName).
		Set("last_ping_at", at).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": deviceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate device ping query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to ping device: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrDeviceNotFound
	}

	return nil
}

func upsertDeviceQuery(device *types.Device) (string, []any, error) {
	deviceMap := utils.StructToMap(device, "last_ping_at")

	// id and created_at never change on an existing row
	updateMap := utils.StructToMap(device, "id", "created_at", "last_ping_at")

	return psql().
		Insert(deviceTableName).
		SetMap(deviceMap).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + buildUpdateClause(updateMap)).
		ToSql()
}

func (r *DeviceRepository) UpsertDevice(ctx context.Context, device *types.Device) error {
	now := time.Now()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query, args, err := upsertDeviceQuery(device)
	if err != nil {
		return fmt.Errorf("failed to generate upsert query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	return nil
}

func (r *DeviceRepository) DeleteDevice(ctx context.Context, id string) error {
	query, args, err := psql().
		Delete(deviceTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	return nil
}
