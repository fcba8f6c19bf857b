package storage

import (
	"context"
	"errors"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

var (
	// ErrReportNotFound is returned when no report has the requested id
	ErrReportNotFound = errors.New("report not found")
	// ErrReportExists is returned when creating a report whose id is taken
	ErrReportExists = errors.New("report already exists")
	// ErrReportSubmitted is returned when updating a submitted report
	ErrReportSubmitted = errors.New("report already submitted")
)

// Repository defines the interface for report persistence
type Repository interface {
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	// UpdateReport applies in to the report and returns the stored result.
	// Submitted reports reject every update with ErrReportSubmitted.
	UpdateReport(ctx context.Context, id string, in models.UpdateReportInput) (*models.Report, error)
	ListReports(ctx context.Context, filters models.ReportFilters) ([]*models.Report, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// applyUpdate mutates report per in, stamping timestamps with now
func applyUpdate(report *models.Report, in models.UpdateReportInput) error {
	if report.Status.IsTerminal() {
		return ErrReportSubmitted
	}

	now := timeNow().UTC()
	if in.Responses != nil {
		report.Responses = in.Responses
	}
	if in.Status != nil {
		report.Status = *in.Status
		if report.Status == models.ReportSubmitted {
			report.SubmittedAt = &now
		}
	}
	report.UpdatedAt = now
	return nil
}
