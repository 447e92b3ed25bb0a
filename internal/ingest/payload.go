package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"civicwatch/pkg/types"
)

var ErrInvalidPayload = errors.New("invalid payload")

// IncomingReport is a single camera sighting as posted by a device.
type IncomingReport struct {
	DeviceID string
	Location types.Location
	Image    string
}

// incomingPayload uses pointers so that missing fields can be told apart
// from zero values.
type incomingPayload struct {
	DeviceID *string `json:"deviceId"`
	Location *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
	Image *string `json:"image"`
}

// DecodeIncomingReport reads and validates a device payload. Any problem with
// the body, including wrongly typed fields or trailing data, yields
// ErrInvalidPayload.
func DecodeIncomingReport(r io.Reader) (*IncomingReport, error) {
	dec := json.NewDecoder(r)

	var payload incomingPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	// The body must hold exactly one JSON value.
	var trailing json.RawMessage
	switch err := dec.Decode(&trailing); {
	case errors.Is(err, io.EOF):
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	default:
		return nil, fmt.Errorf("%w: unexpected data after payload", ErrInvalidPayload)
	}

	switch {
	case payload.DeviceID == nil || strings.TrimSpace(*payload.DeviceID) == "":
		return nil, fmt.Errorf("%w: deviceId must be a non-empty string", ErrInvalidPayload)
	case payload.Location == nil || payload.Location.Lat == nil || payload.Location.Lng == nil:
		return nil, fmt.Errorf("%w: location.lat and location.lng must be numbers", ErrInvalidPayload)
	case payload.Image == nil:
		return nil, fmt.Errorf("%w: image must be a string", ErrInvalidPayload)
	}

	return &IncomingReport{
		DeviceID: *payload.DeviceID,
		Location: types.Location{Lat: *payload.Location.Lat, Lng: *payload.Location.Lng},
		Image:    *payload.Image,
	}, nil
}
