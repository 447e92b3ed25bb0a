package types

import "errors"

var (
	ErrReportNotFound = errors.New("report not found")
	ErrDeviceNotFound = errors.New("device not found")

	// ErrOpenReportExists is returned when a status change would leave two
	// open reports for the same device and issue type.
	ErrOpenReportExists = errors.New("open report already exists for device and issue type")
)
