package seed

import (
	"context"
	"fmt"

	"civicwatch/internal/store"
	"civicwatch/pkg/types"

	"github.com/sirupsen/logrus"
)

// Devices is the source of truth for the camera fleet.
// To add a camera: add it to the list and run `civicwatch seed`.
// To retire a camera: remove it from the list and run `civicwatch seed`.
var Devices = []types.Device{
	{
		ID:           "cam-001",
		Name:         "Main St. Junction Camera",
		LocationName: "Main St & 4th Ave",
		Lat:          17.385044,
		Lng:          78.486671,
		Status:       types.DeviceStatusActive,
	},
	{
		ID:           "cam-002",
		Name:         "Market Road East",
		LocationName: "City Market Entrance",
		Lat:          17.387044,
		Lng:          78.489671,
		Status:       types.DeviceStatusActive,
	},
	{
		ID:           "cam-003",
		Name:         "Industrial Zone Monitor",
		LocationName: "Zone 5 Waste Audit",
		Lat:          17.485044,
		Lng:          78.386671,
		Status:       types.DeviceStatusMaintenance,
	},
	{
		ID:           "cam-004",
		Name:         "Highway Exit 12",
		LocationName: "NH 44 Exit 12B",
		Lat:          17.285044,
		Lng:          78.586671,
		Status:       types.DeviceStatusActive,
	},
	{
		ID:           "cam-005",
		Name:         "Tech Park Entrance",
		LocationName: "Cyber Towers Gate 1",
		Lat:          17.45044,
		Lng:          78.380671,
		Status:       types.DeviceStatusActive,
	},
}

type deviceStore interface {
	Devices(ctx context.Context) ([]*types.Device, error)
	UpsertDevice(ctx context.Context, device *types.Device) error
	DeleteDevice(ctx context.Context, id string) error
}

var _ deviceStore = (*store.DeviceRepository)(nil)

// SeedDevices syncs the devices table with Devices: missing cameras are
// inserted, changed ones updated and retired ones deleted.
func SeedDevices(ctx context.Context, logger *logrus.Logger, repo deviceStore) error {
	logger.WithField("count", len(Devices)).Info("starting device sync")

	seedIDs := make(map[string]bool)
	for _, device := range Devices {
		seedIDs[device.ID] = true
	}

	existing, err := repo.Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch existing devices: %w", err)
	}

	deletedCount := 0
	for _, device := range existing {
		if seedIDs[device.ID] {
			continue
		}

		logger.WithField("device_id", device.ID).Info("deleting retired device")
		if err := repo.DeleteDevice(ctx, device.ID); err != nil {
			return fmt.Errorf("failed to delete device %s: %w", device.ID, err)
		}
		deletedCount++
	}

	for _, device := range Devices {
		if err := repo.UpsertDevice(ctx, &device); err != nil {
			return fmt.Errorf("failed to upsert device %s: %w", device.ID, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"upserted": len(Devices),
		"deleted":  deletedCount,
	}).Info("device sync complete")

	return nil
}
