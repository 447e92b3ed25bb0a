package types

import (
	"encoding/json"
	"time"
)

type ReportStatus string

const (
	ReportStatusSubmitted  ReportStatus = "Submitted"
	ReportStatusInProgress ReportStatus = "In Progress"
	ReportStatusResolved   ReportStatus = "Resolved"
)

// OpenReportStatuses are the statuses of an incident that is not yet resolved.
var OpenReportStatuses = []ReportStatus{ReportStatusSubmitted, ReportStatusInProgress}

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusSubmitted, ReportStatusInProgress, ReportStatusResolved:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

const (
	// IssueTypeNone is what the classifier answers when the frame shows nothing to report.
	IssueTypeNone = "No Issues"

	ReportSourceIOT    = "IOT"
	ReportUserIDDevice = "IOT_DEVICE"
	ReportImageHintIOT = "iot-capture"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Classification is the vision classifier's verdict for a single image.
type Classification struct {
	IssueType     string   `json:"issueType"`
	Severity      Severity `json:"severity"`
	AIDescription string   `json:"aiDescription"`
}

type Report struct {
	ID            string       `db:"id" json:"id"`
	DeviceID      *string      `db:"device_id" json:"deviceId,omitempty"`
	UserID        string       `db:"user_id" json:"userId"`
	UserFullName  string       `db:"user_full_name" json:"userFullName"`
	Source        string       `db:"source" json:"source"`
	Lat           float64      `db:"lat" json:"-"`
	Lng           float64      `db:"lng" json:"-"`
	IssueType     string       `db:"issue_type" json:"issueType"`
	Severity      Severity     `db:"severity" json:"severity"`
	AIDescription string       `db:"ai_description" json:"aiDescription"`
	ImageURL      string       `db:"image_url" json:"imageUrl"`
	ImageHint     string       `db:"image_hint" json:"imageHint"`
	Status        ReportStatus `db:"status" json:"status"`
	UpvoteCount   int          `db:"upvote_count" json:"upvoteCount"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
	LastSeenAt    *time.Time   `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updatedAt"`
}

func (r *Report) Location() Location {
	return Location{Lat: r.Lat, Lng: r.Lng}
}

// MarshalJSON nests the coordinates under "location" the way readers expect them.
func (r Report) MarshalJSON() ([]byte, error) {
	type report Report
	return json.Marshal(struct {
		report
		Location Location `json:"location"`
	}{report: report(r), Location: r.Location()})
}

// ReportFilter narrows the feed query. Zero values are ignored.
type ReportFilter struct {
	Status    ReportStatus `form:"status"`
	IssueType string       `form:"issueType"`
	DeviceID  string       `form:"deviceId"`
	Source    string       `form:"source"`
	Limit     uint64       `form:"limit"`
}

type CountByKey struct {
	Key   string `db:"key" json:"key"`
	Count int64  `db:"count" json:"count"`
}

type ReportSummary struct {
	Total      int64        `json:"total"`
	ByStatus   []CountByKey `json:"byStatus"`
	ByIssue    []CountByKey `json:"byIssueType"`
	BySeverity []CountByKey `json:"bySeverity"`
}
