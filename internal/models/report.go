package models

import (
	"time"
)

// ReportType distinguishes who authored an assessment report
type ReportType string

const (
	ReportSelf    ReportType = "self"
	ReportManager ReportType = "manager"
)

// Valid returns true for the known report types
func (t ReportType) Valid() bool {
	return t == ReportSelf || t == ReportManager
}

// ReportStatus represents the current state of a report
type ReportStatus string

const (
	ReportDraft     ReportStatus = "draft"
	ReportSubmitted ReportStatus = "submitted"
)

// IsTerminal returns true if the report can no longer be edited
func (s ReportStatus) IsTerminal() bool {
	return s == ReportSubmitted
}

// Valid returns true for the known report statuses
func (s ReportStatus) Valid() bool {
	return s == ReportDraft || s == ReportSubmitted
}

// Report represents a persisted assessment instance
type Report struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	AssessmentID string       `json:"assessmentId"`
	Type         ReportType   `json:"type"`
	AssessorID   string       `json:"assessorId"`
	Status       ReportStatus `json:"status"`
	Responses    Responses    `json:"responses"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	SubmittedAt  *time.Time   `json:"submittedAt,omitempty"`
}

// CreateReportInput represents a request to create a report
type CreateReportInput struct {
	UserID       string     `json:"userId"`
	AssessmentID string     `json:"assessmentId"`
	Type         ReportType `json:"type"`
	AssessorID   string     `json:"assessorId"`
	Responses    Responses  `json:"responses,omitempty"`
}

// UpdateReportInput represents a partial report update
type UpdateReportInput struct {
	Responses Responses     `json:"responses,omitempty"`
	Status    *ReportStatus `json:"status,omitempty"`
}

// ReportFilters defines filters for listing reports
type ReportFilters struct {
	UserID       string
	AssessmentID string
	Type         ReportType
	Status       ReportStatus
	Limit        int
	Offset       int
}

// ReportEvent is broadcast to watchers whenever a report changes
type ReportEvent struct {
	Type     string  `json:"type"`
	ReportID string  `json:"reportId"`
	Report   *Report `json:"report,omitempty"`
}
