package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sameera/osem-ladders-sub001/internal/assessment"
	"github.com/sameera/osem-ladders-sub001/internal/ladder"
	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/internal/reportid"
	"github.com/sameera/osem-ladders-sub001/internal/storage"
)

// Report event types
const (
	EventSnapshot  = "snapshot"
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventSubmitted = "submitted"
)

// CategoryCompletion reports whether one category has a selection for every competency
type CategoryCompletion struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Complete bool   `json:"complete"`
}

// CompletionResponse is the body of the completion endpoint
type CompletionResponse struct {
	ReportID   string               `json:"reportId"`
	LadderID   string               `json:"ladderId"`
	Completed  []int                `json:"completed"`
	Total      int                  `json:"total"`
	Complete   bool                 `json:"complete"`
	Categories []CategoryCompletion `json:"categories"`
}

// reportIDParam returns the validated report id from the URL
func reportIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		id = raw
	}

	if _, err := reportid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_report_id", err.Error())
		return "", false
	}
	return id, true
}

// respondRepoError maps repository errors to responses
func respondRepoError(w http.ResponseWriter, err error, action, id string) {
	switch {
	case errors.Is(err, storage.ErrReportNotFound):
		respondError(w, http.StatusNotFound, "not_found", "report not found")
	case errors.Is(err, storage.ErrReportExists):
		respondError(w, http.StatusConflict, "report_exists", "report already exists")
	case errors.Is(err, storage.ErrReportSubmitted):
		respondError(w, http.StatusConflict, "report_submitted", "report has been submitted and can no longer change")
	default:
		slog.Error("failed to "+action+" report", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action+" report")
	}
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReportInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if msg := validateCreate(req); msg != "" {
		respondError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}

	responses := req.Responses
	if responses == nil {
		responses = models.Responses{}
	}

	now := timeNow().UTC()
	report := &models.Report{
		ID:           reportid.Create(req.UserID, req.AssessmentID, req.Type),
		UserID:       req.UserID,
		AssessmentID: req.AssessmentID,
		Type:         req.Type,
		AssessorID:   req.AssessorID,
		Status:       models.ReportDraft,
		Responses:    responses,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateReport(r.Context(), report); err != nil {
		respondRepoError(w, err, "create", report.ID)
		return
	}

	slog.Info("report created", "id", report.ID, "assessor", report.AssessorID)
	s.publish(r.Context(), EventCreated, report)
	respondJSON(w, http.StatusCreated, report)
}

func validateCreate(req models.CreateReportInput) string {
	switch {
	case req.UserID == "":
		return "userId is required"
	case req.AssessmentID == "":
		return "assessmentId is required"
	case !req.Type.Valid():
		return fmt.Sprintf("type must be %q or %q", models.ReportSelf, models.ReportManager)
	case strings.Contains(req.UserID, reportid.Separator), strings.Contains(req.AssessmentID, reportid.Separator):
		return fmt.Sprintf("userId and assessmentId must not contain %q", reportid.Separator)
	}
	return ""
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportIDParam(w, r)
	if !ok {
		return
	}

	report, err := s.repo.GetReport(r.Context(), id)
	if err != nil {
		respondRepoError(w, err, "get", id)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.ReportFilters{
		UserID:       q.Get("userId"),
		AssessmentID: q.Get("assessmentId"),
		Type:         models.ReportType(q.Get("type")),
		Status:       models.ReportStatus(q.Get("status")),
		Limit:        50,
	}

	if filters.Type != "" && !filters.Type.Valid() {
		respondError(w, http.StatusBadRequest, "validation_error", "unknown report type")
		return
	}
	if filters.Status != "" && !filters.Status.Valid() {
		respondError(w, http.StatusBadRequest, "validation_error", "unknown report status")
		return
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	reports, err := s.repo.ListReports(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list reports", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list reports")
		return
	}
	if reports == nil {
		reports = []*models.Report{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"total":   len(reports),
	})
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportIDParam(w, r)
	if !ok {
		return
	}

	var req models.UpdateReportInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			respondError(w, http.StatusBadRequest, "validation_error", "unknown report status")
			return
		}
		if *req.Status == models.ReportSubmitted {
			respondError(w, http.StatusBadRequest, "validation_error", "submit through POST /api/v1/reports/{id}/submit")
			return
		}
	}

	report, err := s.repo.UpdateReport(r.Context(), id, req)
	if err != nil {
		respondRepoError(w, err, "update", id)
		return
	}

	slog.Debug("report updated", "id", id, "responses", len(report.Responses))
	s.publish(r.Context(), EventUpdated, report)
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportIDParam(w, r)
	if !ok {
		return
	}

	if ladderID := r.URL.Query().Get("ladder"); ladderID != "" {
		completion, ok := s.completion(w, r, id, ladderID)
		if !ok {
			return
		}
		if !completion.Complete {
			respondError(w, http.StatusUnprocessableEntity, "incomplete",
				fmt.Sprintf("%d of %d categories complete", len(completion.Completed), completion.Total))
			return
		}
	}

	submitted := models.ReportSubmitted
	report, err := s.repo.UpdateReport(r.Context(), id, models.UpdateReportInput{Status: &submitted})
	if err != nil {
		respondRepoError(w, err, "submit", id)
		return
	}

	slog.Info("report submitted", "id", id)
	s.publish(r.Context(), EventSubmitted, report)
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleReportCompletion(w http.ResponseWriter, r *http.Request) {
	id, ok := reportIDParam(w, r)
	if !ok {
		return
	}

	ladderID := r.URL.Query().Get("ladder")
	if ladderID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "ladder query parameter is required")
		return
	}

	completion, ok := s.completion(w, r, id, ladderID)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, completion)
}

// completion evaluates a stored report against a ladder, writing the error response on failure
func (s *Server) completion(w http.ResponseWriter, r *http.Request, id, ladderID string) (*CompletionResponse, bool) {
	l, err := s.ladders.Lookup(ladderID)
	if err != nil {
		if errors.Is(err, ladder.ErrLadderNotFound) {
			respondError(w, http.StatusNotFound, "ladder_not_found", "ladder not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load ladder")
		return nil, false
	}

	report, err := s.repo.GetReport(r.Context(), id)
	if err != nil {
		respondRepoError(w, err, "get", id)
		return nil, false
	}

	selections, _ := assessment.FromResponses(report.Responses)
	done := assessment.CompletedCategories(l.Categories, selections)

	resp := &CompletionResponse{
		ReportID:   id,
		LadderID:   l.ID,
		Completed:  done.Sorted(),
		Total:      len(l.Categories),
		Complete:   assessment.IsComplete(l.Categories, selections),
		Categories: make([]CategoryCompletion, 0, len(l.Categories)),
	}
	for i, c := range l.Categories {
		resp.Categories = append(resp.Categories, CategoryCompletion{
			Index:    i,
			Title:    c.Title,
			Complete: done.Has(i),
		})
	}
	return resp, true
}

func (s *Server) publish(ctx context.Context, eventType string, report *models.Report) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(ctx, models.ReportEvent{
		Type:     eventType,
		ReportID: report.ID,
		Report:   report,
	})
}
