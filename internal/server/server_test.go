package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civicwatch/internal/ingest"
	"civicwatch/internal/utils"
	"civicwatch/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{"deviceId":"D1","location":{"lat":17.385044,"lng":78.486671},"image":"data:image/jpeg;base64,aGVsbG8="}`

type stubClassifier struct {
	result *types.Classification
	err    error
}

func (c *stubClassifier) Classify(ctx context.Context, imageDataURI string, location types.Location) (*types.Classification, error) {
	return c.result, c.err
}

type stubObjects struct {
	err error
}

func (o *stubObjects) Store(ctx context.Context, deviceID, dataURI string) (string, string, error) {
	if o.err != nil {
		return "", "", o.err
	}
	return "https://images.example.org/iot-reports/" + deviceID + "/1.jpg", "iot-reports/" + deviceID + "/1.jpg", nil
}

func (o *stubObjects) Delete(ctx context.Context, key string) error {
	return nil
}

// memoryReports serves as both the pipeline ledger and the dashboard store.
type memoryReports struct {
	reports   []*types.Report
	createErr error
	statusErr error
}

func (m *memoryReports) OpenReport(ctx context.Context, deviceID, issueType string) (*types.Report, error) {
	for _, r := range m.reports {
		if utils.PtrString(r.DeviceID) == deviceID && r.IssueType == issueType && r.Status != types.ReportStatusResolved {
			return r, nil
		}
	}
	return nil, types.ErrReportNotFound
}

func (m *memoryReports) TouchReport(ctx context.Context, reportID string, seenAt time.Time) error {
	r, err := m.Report(ctx, reportID)
	if err != nil {
		return err
	}
	r.LastSeenAt = utils.TimePtr(seenAt)
	return nil
}

func (m *memoryReports) CreateReport(ctx context.Context, report *types.Report) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	report.ID = utils.NanoID()
	m.reports = append(m.reports, report)
	return true, nil
}

func (m *memoryReports) Report(ctx context.Context, reportID string) (*types.Report, error) {
	for _, r := range m.reports {
		if r.ID == reportID {
			return r, nil
		}
	}
	return nil, types.ErrReportNotFound
}

func (m *memoryReports) Reports(ctx context.Context, filter types.ReportFilter) ([]*types.Report, error) {
	out := make([]*types.Report, 0)
	for _, r := range m.reports {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryReports) LatestReportsByDevice(ctx context.Context) (map[string]*types.Report, error) {
	out := make(map[string]*types.Report)
	for _, r := range m.reports {
		out[utils.PtrString(r.DeviceID)] = r
	}
	return out, nil
}

func (m *memoryReports) UpdateStatus(ctx context.Context, reportID string, status types.ReportStatus) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	r, err := m.Report(ctx, reportID)
	if err != nil {
		return err
	}
	r.Status = status
	return nil
}

func (m *memoryReports) Upvote(ctx context.Context, reportID string) (int, error) {
	r, err := m.Report(ctx, reportID)
	if err != nil {
		return 0, err
	}
	r.UpvoteCount++
	return r.UpvoteCount, nil
}

func (m *memoryReports) DeleteReport(ctx context.Context, reportID string) error {
	for i, r := range m.reports {
		if r.ID == reportID {
			m.reports = append(m.reports[:i], m.reports[i+1:]...)
			return nil
		}
	}
	return types.ErrReportNotFound
}

func (m *memoryReports) Summary(ctx context.Context) (*types.ReportSummary, error) {
	return &types.ReportSummary{Total: int64(len(m.reports))}, nil
}

type memoryDevices struct {
	devices []*types.Device
}

func (m *memoryDevices) Devices(ctx context.Context) ([]*types.Device, error) {
	return m.devices, nil
}

type testEnv struct {
	handler    http.Handler
	reports    *memoryReports
	classifier *stubClassifier
	objects    *stubObjects
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		reports: &memoryReports{},
		classifier: &stubClassifier{result: &types.Classification{
			IssueType:     "Pothole",
			Severity:      types.SeverityHigh,
			AIDescription: "Pothole in the left lane.",
		}},
		objects: &stubObjects{},
	}

	pipeline, err := ingest.NewPipeline(logger, env.classifier, env.objects, env.reports, nil, types.Classification{
		IssueType:     "Unclassified",
		Severity:      types.SeverityMedium,
		AIDescription: "Automated fallback report: AI service unavailable. Manual review required.",
	})
	require.NoError(t, err)

	config := &types.Config{ServerPort: 0, MaxPayloadBytes: 1 << 20}
	devices := &memoryDevices{devices: []*types.Device{
		{ID: "D1", Name: "Main St. Junction Camera", Status: types.DeviceStatusActive},
		{ID: "D2", Name: "Market Road East", Status: types.DeviceStatusActive},
	}}

	env.handler = New(config, logger, pipeline, env.reports, devices).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestPostIoTReport_Created(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/iot/report", validPayload)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["reportId"])
	assert.Equal(t, "https://images.example.org/iot-reports/D1/1.jpg", body["imageUrl"])
	assert.NotContains(t, body, "isDuplicate")

	analysis := body["analysis"].(map[string]any)
	assert.Equal(t, "Pothole", analysis["issueType"])
	assert.Equal(t, "High", analysis["severity"])
	assert.Equal(t, "Pothole in the left lane.", analysis["aiDescription"])

	require.Len(t, env.reports.reports, 1)
	assert.Equal(t, types.ReportStatusSubmitted, env.reports.reports[0].Status)
}

func TestPostIoTReport_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.reports.reports = []*types.Report{{
		ID:        "existing",
		DeviceID:  utils.StringPtr("D1"),
		IssueType: "Pothole",
		Status:    types.ReportStatusSubmitted,
	}}

	rec, body := env.do(t, http.MethodPost, "/api/iot/report", validPayload)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "existing", body["reportId"])
	assert.Equal(t, true, body["isDuplicate"])
	assert.NotEmpty(t, body["message"])
	assert.Len(t, env.reports.reports, 1)
}

func TestPostIoTReport_NoIssues(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.result = &types.Classification{IssueType: types.IssueTypeNone, Severity: types.SeverityLow}

	rec, body := env.do(t, http.MethodPost, "/api/iot/report", validPayload)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "reportId")
	assert.Empty(t, env.reports.reports)
}

func TestPostIoTReport_ClassifierDown(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.err = errors.New("quota exceeded")

	rec, body := env.do(t, http.MethodPost, "/api/iot/report", validPayload)
	require.Equal(t, http.StatusOK, rec.Code)

	analysis := body["analysis"].(map[string]any)
	assert.Equal(t, "Medium", analysis["severity"])
	assert.Equal(t, "Unclassified", analysis["issueType"])
	assert.Len(t, env.reports.reports, 1)
}

func TestPostIoTReport_StorageDownKeepsImageInline(t *testing.T) {
	env := newTestEnv(t)
	env.objects.err = errors.New("bucket unavailable")

	rec, body := env.do(t, http.MethodPost, "/api/iot/report", validPayload)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", body["imageUrl"])
	require.Len(t, env.reports.reports, 1)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", env.reports.reports[0].ImageURL)
}

func TestPostIoTReport_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	for _, payload := range []string{
		`{}`,
		`{"deviceId":"D1","location":{"lat":"17","lng":78},"image":"x"}`,
		`{"deviceId":"D1","location":{"lat":17,"lng":78}}`,
		`not json`,
		validPayload + `xyz`,
	} {
		rec, body := env.do(t, http.MethodPost, "/api/iot/report", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, invalidPayloadMessage, body["error"])
	}

	assert.Empty(t, env.reports.reports)
}

func TestPostIoTReport_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := `{"deviceId":"D1","location":{"lat":1,"lng":2},"image":"` + strings.Repeat("a", 2<<20) + `"}`

	rec, _ := env.do(t, http.MethodPost, "/api/iot/report", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, env.reports.reports)
}

func TestPostIoTReport_InsertFailure(t *testing.T) {
	env := newTestEnv(t)
	env.reports.createErr = errors.New("connection refused")

	rec, body := env.do(t, http.MethodPost, "/api/iot/report", validPayload)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "connection refused")
}

func TestPostIoTReport_TrailingSlash(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/iot/report/", validPayload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.reports.reports, 1)
}

func TestReportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.reports.reports = []*types.Report{
		{ID: "r1", DeviceID: utils.StringPtr("D1"), IssueType: "Pothole", Status: types.ReportStatusSubmitted, Lat: 1, Lng: 2},
		{ID: "r2", DeviceID: utils.StringPtr("D2"), IssueType: "Garbage Overflow", Status: types.ReportStatusResolved},
	}

	rec, body := env.do(t, http.MethodGet, "/api/reports?status=Submitted", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reports := body["reports"].([]any)
	require.Len(t, reports, 1)
	first := reports[0].(map[string]any)
	assert.Equal(t, "r1", first["id"])
	assert.Equal(t, map[string]any{"lat": 1.0, "lng": 2.0}, first["location"])

	rec, _ = env.do(t, http.MethodGet, "/api/reports?status=Closed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/reports?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/reports/r2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r2", body["report"].(map[string]any)["id"])

	rec, _ = env.do(t, http.MethodGet, "/api/reports/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPatch, "/api/reports/r1/status", `{"status":"In Progress"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ReportStatusInProgress, env.reports.reports[0].Status)

	rec, _ = env.do(t, http.MethodPatch, "/api/reports/r1/status", `{"status":"Closed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/reports/r1/upvote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["upvoteCount"])

	rec, _ = env.do(t, http.MethodDelete, "/api/reports/r2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.reports.reports, 1)
}

func TestUpdateStatusConflict(t *testing.T) {
	env := newTestEnv(t)
	env.reports.reports = []*types.Report{{ID: "r1", Status: types.ReportStatusResolved}}
	env.reports.statusErr = types.ErrOpenReportExists

	rec, _ := env.do(t, http.MethodPatch, "/api/reports/r1/status", `{"status":"Submitted"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDashboardEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.reports.reports = []*types.Report{
		{ID: "r1", DeviceID: utils.StringPtr("D1"), IssueType: "Pothole", Status: types.ReportStatusSubmitted},
	}

	rec, body := env.do(t, http.MethodGet, "/api/analytics/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["summary"].(map[string]any)["total"])

	rec, body = env.do(t, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	devices := body["devices"].([]any)
	require.Len(t, devices, 2)

	d1 := devices[0].(map[string]any)
	assert.Equal(t, "D1", d1["id"])
	assert.Equal(t, "r1", d1["latestReport"].(map[string]any)["id"])
	assert.NotContains(t, devices[1].(map[string]any), "latestReport")
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
