package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"civicwatch/internal/ingest"
	"civicwatch/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// ReportStore is what the feed and dashboard endpoints read and mutate.
type ReportStore interface {
	Report(ctx context.Context, reportID string) (*types.Report, error)
	Reports(ctx context.Context, filter types.ReportFilter) ([]*types.Report, error)
	LatestReportsByDevice(ctx context.Context) (map[string]*types.Report, error)
	UpdateStatus(ctx context.Context, reportID string, status types.ReportStatus) error
	Upvote(ctx context.Context, reportID string) (int, error)
	DeleteReport(ctx context.Context, reportID string) error
	Summary(ctx context.Context) (*types.ReportSummary, error)
}

type DeviceStore interface {
	Devices(ctx context.Context) ([]*types.Device, error)
}

type Service struct {
	logger   *logrus.Logger
	config   *types.Config
	pipeline *ingest.Pipeline
	reports  ReportStore
	devices  DeviceStore

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	pipeline *ingest.Pipeline,
	reports ReportStore,
	devices DeviceStore,
) *Service {
	mux := flow.New()

	s := &Service{
		logger:   logger,
		config:   config,
		pipeline: pipeline,
		reports:  reports,
		devices:  devices,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	// flow matches routes before running middleware, so the slash rewrite wraps the mux.
	s.server.Handler = s.StripTrailingSlash(mux)

	return s
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", promhttp.Handler(), http.MethodGet)

	// Device ingestion
	r.HandleFunc("/api/iot/report", s.handlePostIoTReport, http.MethodPost)

	// Citizen feed and authority dashboard
	r.HandleFunc("/api/reports", s.handleListReports, http.MethodGet)
	r.HandleFunc("/api/reports/:id", s.handleGetReport, http.MethodGet)
	r.HandleFunc("/api/reports/:id", s.handleDeleteReport, http.MethodDelete)
	r.HandleFunc("/api/reports/:id/status", s.handleUpdateReportStatus, http.MethodPatch)
	r.HandleFunc("/api/reports/:id/upvote", s.handleUpvoteReport, http.MethodPost)
	r.HandleFunc("/api/analytics/summary", s.handleAnalyticsSummary, http.MethodGet)
	r.HandleFunc("/api/devices", s.handleListDevices, http.MethodGet)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
