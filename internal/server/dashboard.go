package server

import (
	"net/http"

	"civicwatch/pkg/types"
)

func (s *Service) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.Summary(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to build analytics summary")
		s.internalServerError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
}

// handleListDevices backs the surveillance view: every camera with its latest sighting.
func (s *Service) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.devices.Devices(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list devices")
		s.internalServerError(w)
		return
	}

	latest, err := s.reports.LatestReportsByDevice(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to load latest device reports")
		s.internalServerError(w)
		return
	}

	feeds := make([]types.DeviceFeed, 0, len(devices))
	for _, device := range devices {
		feeds = append(feeds, types.DeviceFeed{
			Device:       *device,
			LatestReport: latest[device.ID],
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "devices": feeds})
}
