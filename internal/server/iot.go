package server

import (
	"errors"
	"net/http"

	"civicwatch/internal/ingest"
	"civicwatch/internal/metrics"
	"civicwatch/pkg/types"
)

const invalidPayloadMessage = "Invalid payload. Required: deviceId, location{lat,lng}, image"

type iotReportResponse struct {
	Success     bool                 `json:"success"`
	ReportID    string               `json:"reportId,omitempty"`
	ImageURL    string               `json:"imageUrl,omitempty"`
	Message     string               `json:"message,omitempty"`
	Analysis    types.Classification `json:"analysis"`
	IsDuplicate bool                 `json:"isDuplicate,omitempty"`
}

func (s *Service) handlePostIoTReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := http.MaxBytesReader(w, r.Body, s.config.MaxPayloadBytes)

	in, err := ingest.DecodeIncomingReport(body)
	if err != nil {
		metrics.IngestOutcomes.WithLabelValues(metrics.OutcomeRejected).Inc()

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}

		s.logger.WithError(err).Info("rejected iot report payload")
		s.writeError(w, http.StatusBadRequest, invalidPayloadMessage)
		return
	}

	result, err := s.pipeline.Process(ctx, in)
	if err != nil {
		s.logger.WithError(err).WithField("device_id", in.DeviceID).Error("iot report failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := iotReportResponse{
		Success:  true,
		ReportID: result.ReportID,
		Analysis: result.Analysis,
	}

	switch result.Outcome {
	case ingest.OutcomeDuplicate:
		resp.Message = "Duplicate incident detected. Existing report updated."
		resp.IsDuplicate = true
	case ingest.OutcomeNoIssue:
		resp.Message = "No issues detected."
	case ingest.OutcomeCreated:
		resp.ImageURL = result.ImageURL
	}

	s.writeJSON(w, http.StatusOK, resp)
}
