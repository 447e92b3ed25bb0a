package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"civicwatch/pkg/types"

	"github.com/sirupsen/logrus"
)

type reportsResponse struct {
	Success bool            `json:"success"`
	Reports []*types.Report `json:"reports"`
}

type reportResponse struct {
	Success bool          `json:"success"`
	Report  *types.Report `json:"report"`
}

type updateStatusRequest struct {
	Status types.ReportStatus `json:"status"`
}

func (s *Service) handleListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter types.ReportFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	if filter.Status != "" && !filter.Status.Valid() {
		s.writeError(w, http.StatusBadRequest, "Unknown status")
		return
	}

	reports, err := s.reports.Reports(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("failed to list reports")
		s.internalServerError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, reportsResponse{Success: true, Reports: reports})
}

func (s *Service) handleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID := strings.TrimSpace(r.PathValue("id"))

	report, err := s.reports.Report(ctx, reportID)
	if err != nil {
		s.reportError(w, err, reportID, "failed to fetch report")
		return
	}

	s.writeJSON(w, http.StatusOK, reportResponse{Success: true, Report: report})
}

func (s *Service) handleUpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID := strings.TrimSpace(r.PathValue("id"))

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		s.writeError(w, http.StatusBadRequest, "Invalid payload. Required: status (Submitted, In Progress, Resolved)")
		return
	}

	err := s.reports.UpdateStatus(ctx, reportID, req.Status)
	if err != nil {
		s.reportError(w, err, reportID, "failed to update report status")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"report_id": reportID,
		"status":    req.Status,
	}).Info("report status updated")

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "reportId": reportID, "status": req.Status})
}

func (s *Service) handleUpvoteReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID := strings.TrimSpace(r.PathValue("id"))

	count, err := s.reports.Upvote(ctx, reportID)
	if err != nil {
		s.reportError(w, err, reportID, "failed to upvote report")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "reportId": reportID, "upvoteCount": count})
}

func (s *Service) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID := strings.TrimSpace(r.PathValue("id"))

	err := s.reports.DeleteReport(ctx, reportID)
	if err != nil {
		s.reportError(w, err, reportID, "failed to delete report")
		return
	}

	s.logger.WithField("report_id", reportID).Info("report deleted")

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "reportId": reportID})
}

// reportError maps repository errors onto responses.
func (s *Service) reportError(w http.ResponseWriter, err error, reportID, msg string) {
	switch {
	case errors.Is(err, types.ErrReportNotFound):
		s.writeError(w, http.StatusNotFound, "Report not found")
	case errors.Is(err, types.ErrOpenReportExists):
		s.writeError(w, http.StatusConflict, "Another open report already tracks this device and issue type")
	default:
		s.logger.WithError(err).WithField("report_id", reportID).Error(msg)
		s.internalServerError(w)
	}
}
