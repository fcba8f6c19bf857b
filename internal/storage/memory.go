package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

var timeNow = time.Now

// MemoryRepository implements Repository in process memory
type MemoryRepository struct {
	mu      sync.RWMutex
	reports map[string]*models.Report
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{reports: make(map[string]*models.Report)}
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateReport stores a copy of report
func (r *MemoryRepository) CreateReport(ctx context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.ID]; ok {
		return ErrReportExists
	}
	r.reports[report.ID] = copyReport(report)
	return nil
}

// GetReport returns a copy of the stored report
func (r *MemoryRepository) GetReport(ctx context.Context, id string) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return copyReport(report), nil
}

// UpdateReport applies a partial update
func (r *MemoryRepository) UpdateReport(ctx context.Context, id string, in models.UpdateReportInput) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	updated := copyReport(report)
	if err := applyUpdate(updated, in); err != nil {
		return nil, err
	}
	r.reports[id] = updated
	return copyReport(updated), nil
}

// ListReports returns reports matching filters, newest first
func (r *MemoryRepository) ListReports(ctx context.Context, filters models.ReportFilters) ([]*models.Report, error) {
	r.mu.RLock()
	var reports []*models.Report
	for _, report := range r.reports {
		if matches(report, filters) {
			reports = append(reports, copyReport(report))
		}
	}
	r.mu.RUnlock()

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].ID < reports[j].ID
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(reports) {
			return nil, nil
		}
		reports = reports[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(reports) {
		reports = reports[:filters.Limit]
	}
	return reports, nil
}

func matches(report *models.Report, f models.ReportFilters) bool {
	if f.UserID != "" && report.UserID != f.UserID {
		return false
	}
	if f.AssessmentID != "" && report.AssessmentID != f.AssessmentID {
		return false
	}
	if f.Type != "" && report.Type != f.Type {
		return false
	}
	if f.Status != "" && report.Status != f.Status {
		return false
	}
	return true
}

func copyReport(report *models.Report) *models.Report {
	cp := *report
	if report.Responses != nil {
		cp.Responses = make(models.Responses, len(report.Responses))
		for k, v := range report.Responses {
			if v.Feedback != nil {
				fb := *v.Feedback
				v.Feedback = &fb
			}
			cp.Responses[k] = v
		}
	}
	if report.SubmittedAt != nil {
		at := *report.SubmittedAt
		cp.SubmittedAt = &at
	}
	return &cp
}
