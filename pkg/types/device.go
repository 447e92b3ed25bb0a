package types

import "time"

type DeviceStatus string

const (
	DeviceStatusActive      DeviceStatus = "active"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
	DeviceStatusOffline     DeviceStatus = "offline"
)

// Device is a roadside camera that posts sightings to the ingestion endpoint.
type Device struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	LocationName string       `db:"location_name" json:"locationName"`
	Lat          float64      `db:"lat" json:"lat"`
	Lng          float64      `db:"lng" json:"lng"`
	Status       DeviceStatus `db:"status" json:"status"`
	LastPingAt   *time.Time   `db:"last_ping_at" json:"lastPingAt,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// DeviceFeed pairs a device with the most recent report it produced.
type DeviceFeed struct {
	Device
	LatestReport *Report `json:"latestReport,omitempty"`
}
