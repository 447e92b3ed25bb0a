// Package ingest turns camera sightings into civic issue reports.
//
// A sighting is classified, checked against the open incidents of its device
// and then either folded into the matching incident or stored as a new
// report. Every step after validation degrades instead of failing: a broken
// classifier yields the fallback classification, a failed duplicate lookup is
// treated as "no duplicate" and a failed upload keeps the image inline. Only
// failing to write the final record fails the request.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicwatch/internal/metrics"
	"civicwatch/internal/utils"
	"civicwatch/pkg/types"

	"github.com/sirupsen/logrus"
)

type Classifier interface {
	Classify(ctx context.Context, imageDataURI string, location types.Location) (*types.Classification, error)
}

type ObjectStore interface {
	Store(ctx context.Context, deviceID, dataURI string) (url string, key string, err error)
	Delete(ctx context.Context, key string) error
}

// Ledger is the slice of the report repository the pipeline writes through.
type Ledger interface {
	OpenReport(ctx context.Context, deviceID, issueType string) (*types.Report, error)
	TouchReport(ctx context.Context, reportID string, seenAt time.Time) error
	// CreateReport inserts report, or folds it into the open report holding
	// the same device and issue type. Either way report.ID ends up naming
	// the stored incident; inserted tells the two apart.
	CreateReport(ctx context.Context, report *types.Report) (inserted bool, err error)
}

type DevicePinger interface {
	Ping(ctx context.Context, deviceID string, at time.Time) error
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNoIssue   Outcome = "no_issue"
)

type Result struct {
	Outcome  Outcome
	ReportID string
	ImageURL string
	Analysis types.Classification
}

type Pipeline struct {
	logger     logrus.FieldLogger
	classifier Classifier
	objects    ObjectStore
	ledger     Ledger
	devices    DevicePinger
	fallback   types.Classification
	now        func() time.Time
}

// NewPipeline wires the pipeline. devices may be nil when heartbeats are not tracked.
func NewPipeline(
	logger logrus.FieldLogger,
	classifier Classifier,
	objects ObjectStore,
	ledger Ledger,
	devices DevicePinger,
	fallback types.Classification,
) (*Pipeline, error) {
	if err := ValidateFallback(fallback); err != nil {
		return nil, err
	}

	return &Pipeline{
		logger:     logger,
		classifier: classifier,
		objects:    objects,
		ledger:     ledger,
		devices:    devices,
		fallback:   fallback,
		now:        time.Now,
	}, nil
}

// ValidateFallback rejects fallback classifications that would silently drop sightings.
func ValidateFallback(fallback types.Classification) error {
	if fallback.IssueType == "" {
		return fmt.Errorf("fallback issue type is required")
	}
	if fallback.IssueType == types.IssueTypeNone {
		return fmt.Errorf("fallback issue type cannot be %q", types.IssueTypeNone)
	}
	if !fallback.Severity.Valid() {
		return fmt.Errorf("fallback severity %q is not one of Low, Medium, High", fallback.Severity)
	}
	return nil
}

// Process runs one validated sighting through the pipeline.
func (p *Pipeline) Process(ctx context.Context, in *IncomingReport) (*Result, error) {
	started := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(started).Seconds())
	}()

	logger := p.logger.WithField("device_id", in.DeviceID)

	p.pingDevice(ctx, logger, in.DeviceID, p.now())

	analysis := p.classify(ctx, logger, in)
	logger = logger.WithField("issue_type", analysis.IssueType)

	if analysis.IssueType == types.IssueTypeNone {
		metrics.IngestOutcomes.WithLabelValues(metrics.OutcomeNoIssue).Inc()
		return &Result{Outcome: OutcomeNoIssue, Analysis: analysis}, nil
	}

	existing, err := p.ledger.OpenReport(ctx, in.DeviceID, analysis.IssueType)
	switch {
	case err == nil:
		return p.duplicate(ctx, logger, existing, analysis), nil
	case errors.Is(err, types.ErrReportNotFound):
	default:
		metrics.Degradations.WithLabelValues(metrics.StepDedupeQuery).Inc()
		logger.WithError(err).Warn("deduplication check failed, proceeding with new report")
	}

	imageURL, objectKey, err := p.objects.Store(ctx, in.DeviceID, in.Image)
	if err != nil {
		metrics.Degradations.WithLabelValues(metrics.StepImageStore).Inc()
		logger.WithError(err).Warn("image upload failed, storing image inline")
		imageURL, objectKey = in.Image, ""
	}

	report := &types.Report{
		DeviceID:      utils.StringPtr(in.DeviceID),
		UserID:        types.ReportUserIDDevice,
		UserFullName:  fmt.Sprintf("IoT Device (%s)", in.DeviceID),
		Source:        types.ReportSourceIOT,
		Lat:           in.Location.Lat,
		Lng:           in.Location.Lng,
		IssueType:     analysis.IssueType,
		Severity:      analysis.Severity,
		AIDescription: analysis.AIDescription,
		ImageURL:      imageURL,
		ImageHint:     types.ReportImageHintIOT,
		Status:        types.ReportStatusSubmitted,
		UpvoteCount:   0,
		CreatedAt:     p.now(),
	}

	inserted, err := p.ledger.CreateReport(ctx, report)
	if err != nil {
		metrics.IngestOutcomes.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	if !inserted {
		// Lost the race against a concurrent sighting, or the duplicate
		// lookup above was unavailable. The ledger already refreshed the
		// open report.
		return p.foldedIntoOpen(ctx, logger, report.ID, objectKey, analysis), nil
	}

	metrics.IngestOutcomes.WithLabelValues(metrics.OutcomeCreated).Inc()
	logger.WithField("report_id", report.ID).Info("report created")

	return &Result{
		Outcome:  OutcomeCreated,
		ReportID: report.ID,
		ImageURL: imageURL,
		Analysis: analysis,
	}, nil
}

func (p *Pipeline) classify(ctx context.Context, logger logrus.FieldLogger, in *IncomingReport) types.Classification {
	analysis, err := p.classifier.Classify(ctx, in.Image, in.Location)
	if err == nil && analysis == nil {
		err = errors.New("classifier returned no result")
	}
	if err != nil {
		metrics.Degradations.WithLabelValues(metrics.StepClassifier).Inc()
		logger.WithError(err).Warn("image classification failed, using fallback classification")
		return p.fallback
	}
	return *analysis
}

func (p *Pipeline) duplicate(ctx context.Context, logger logrus.FieldLogger, existing *types.Report, analysis types.Classification) *Result {
	logger = logger.WithField("report_id", existing.ID)

	if err := p.ledger.TouchReport(ctx, existing.ID, p.now()); err != nil {
		metrics.Degradations.WithLabelValues(metrics.StepDedupeTouch).Inc()
		logger.WithError(err).Warn("failed to refresh last seen time of open report")
	}

	metrics.IngestOutcomes.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	logger.Info("duplicate sighting folded into open report")

	return &Result{
		Outcome:  OutcomeDuplicate,
		ReportID: existing.ID,
		Analysis: analysis,
	}
}

func (p *Pipeline) foldedIntoOpen(ctx context.Context, logger logrus.FieldLogger, reportID, objectKey string, analysis types.Classification) *Result {
	logger = logger.WithField("report_id", reportID)

	if objectKey != "" {
		if err := p.objects.Delete(ctx, objectKey); err != nil {
			logger.WithError(err).WithField("object_key", objectKey).Warn("failed to delete orphaned image")
		}
	}

	metrics.IngestOutcomes.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	logger.Info("sighting folded into open report on insert")

	return &Result{
		Outcome:  OutcomeDuplicate,
		ReportID: reportID,
		Analysis: analysis,
	}
}

func (p *Pipeline) pingDevice(ctx context.Context, logger logrus.FieldLogger, deviceID string, at time.Time) {
	if p.devices == nil {
		return
	}

	err := p.devices.Ping(ctx, deviceID, at)
	if errors.Is(err, types.ErrDeviceNotFound) {
		logger.Debug("sighting from unregistered device")
		return
	}
	if err != nil {
		metrics.Degradations.WithLabelValues(metrics.StepDevicePing).Inc()
		logger.WithError(err).Warn("failed to record device heartbeat")
	}
}
