package issue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"issue-service/internal/httputil"
	"issue-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// BulkDeleteID is the _id value that requests removal of every issue in the
// project instead of a single record.
const BulkDeleteID = "delall"

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/api/issues/{project}", func(r chi.Router) {
		r.Get("/", h.ListIssues)
		r.Post("/", h.CreateIssue)
		r.Put("/", h.UpdateIssue)
		r.Delete("/", h.DeleteIssue)
	})
}

type CreateIssueRequest struct {
	IssueTitle string `json:"issue_title" validate:"required"`
	IssueText  string `json:"issue_text" validate:"required"`
	CreatedBy  string `json:"created_by" validate:"required"`
	AssignedTo string `json:"assigned_to"`
	StatusText string `json:"status_text"`
	Open       *bool  `json:"open"`
}

type UpdateIssueRequest struct {
	ID string `json:"_id"`
	Changes
}

type DeleteIssueRequest struct {
	ID string `json:"_id"`
}

func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	// Every query parameter is an exact-match filter.
	filters := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}

	issues, err := h.service.ListIssues(r.Context(), project, filters)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list issues", "project", project, "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "error fetching issues")
		return
	}

	h.metrics.RecordIssuesListed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, issues)
}

func (h *Handler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	var req CreateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	open := true
	if req.Open != nil {
		open = *req.Open
	}
	issue := &Issue{
		IssueTitle: req.IssueTitle,
		IssueText:  req.IssueText,
		CreatedBy:  req.CreatedBy,
		AssignedTo: req.AssignedTo,
		StatusText: req.StatusText,
		Open:       open,
	}

	h.logger.InfoContext(r.Context(), "creating issue", "project", project, "title", req.IssueTitle)
	created, err := h.service.CreateIssue(r.Context(), project, issue)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create issue", "project", project, "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "error saving issue")
		return
	}

	h.metrics.RecordIssueCreated(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	var req UpdateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "no updated field sent")
		return
	}

	h.logger.InfoContext(r.Context(), "updating issue", "project", project, "id", req.ID)
	if err := h.service.UpdateIssue(r.Context(), project, req.ID, &req.Changes); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrIssueNotFound) {
			code = http.StatusNotFound
		} else {
			h.logger.ErrorContext(r.Context(), "failed to update issue", "id", req.ID, "error", err)
		}
		httputil.RespondWithError(w, code, "could not update "+req.ID)
		return
	}

	h.metrics.RecordIssueUpdated(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "successfully updated")
}

func (h *Handler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	var req DeleteIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "_id error")
		return
	}

	if req.ID == BulkDeleteID {
		// Fire and forget: the response does not wait for the deletion.
		ctx := context.WithoutCancel(r.Context())
		go func() {
			count, err := h.service.DeleteAllIssues(ctx, project)
			if err != nil {
				h.logger.Error("bulk delete failed", "project", project, "error", err)
				return
			}
			h.logger.Info("bulk delete finished", "project", project, "count", count)
		}()

		h.metrics.RecordIssuesBulkDeleted(r.Context())

		httputil.RespondWithSuccess(w, http.StatusOK, "deleted *")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting issue", "project", project, "id", req.ID)
	if _, err := h.service.DeleteIssue(r.Context(), project, req.ID); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrIssueNotFound) {
			code = http.StatusNotFound
		} else {
			h.logger.ErrorContext(r.Context(), "failed to delete issue", "id", req.ID, "error", err)
		}
		httputil.RespondWithError(w, code, "could not delete "+req.ID)
		return
	}

	h.metrics.RecordIssueDeleted(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "deleted "+req.ID)
}
