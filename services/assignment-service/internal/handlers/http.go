package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/model"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/saga"
)

type Creator interface {
	Execute(ctx context.Context, req saga.Request) (model.Assignment, error)
}

type Store interface {
	Get(ctx context.Context, id string) (model.Assignment, error)
	List(ctx context.Context, f model.Filter) ([]model.Assignment, error)
	SoftDelete(ctx context.Context, id string, reason string) (model.Assignment, bool, error)
}

type Releaser interface {
	Release(ctx context.Context, projectID, assignmentID string) error
}

type SagaRuns interface {
	List(ctx context.Context, status model.SagaStatus, limit int) ([]model.SagaRun, error)
}

type Handler struct {
	saga     Creator
	store    Store
	projects Releaser
	runs     SagaRuns
	logger   *slog.Logger
	now      func() time.Time
}

func New(creator Creator, store Store, projects Releaser, runs SagaRuns, logger *slog.Logger) *Handler {
	return &Handler{saga: creator, store: store, projects: projects, runs: runs, logger: logger, now: time.Now}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/assignments", h.Create)
	r.Get("/assignments", h.List)
	r.Get("/assignments/{id}", h.Get)
	r.Delete("/assignments/{id}", h.Delete)
	r.Get("/saga-runs", h.ListSagaRuns)
	return r
}

type createRequest struct {
	EmployeeID string     `json:"employee_id" validate:"required,uuid"`
	ProjectID  string     `json:"project_id" validate:"required,uuid"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidJSON, err.Error())
		return
	}
	// An omitted valid_from means now, so valid_to is checked against the
	// start the assignment will actually get.
	sreq := saga.Request{EmployeeID: req.EmployeeID, ProjectID: req.ProjectID, ValidFrom: h.now().UTC()}
	if req.ValidFrom != nil {
		sreq.ValidFrom = req.ValidFrom.UTC()
	}
	if req.ValidTo != nil {
		to := req.ValidTo.UTC()
		sreq.ValidTo = &to
	}

	fields := httpx.Validate(req)
	if !model.ValidPeriod(sreq.ValidFrom, sreq.ValidTo) {
		fields = append(fields, periodFieldError(req.ValidFrom != nil))
	}
	if fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	a, err := h.saga.Execute(r.Context(), sreq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/assignments/"+a.ID)
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentID(w, r)
	if !ok {
		return
	}
	a, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

type listQuery struct {
	EmployeeID string `json:"employee_id" validate:"omitempty,uuid"`
	ProjectID  string `json:"project_id" validate:"omitempty,uuid"`
	Limit      int    `json:"limit" validate:"gte=0,lte=500"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq := listQuery{EmployeeID: q.Get("employee_id"), ProjectID: q.Get("project_id")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteValidationError(w, r, []httpx.FieldError{{Field: "limit", Message: "must be an integer"}})
			return
		}
		lq.Limit = n
	}
	if fields := httpx.Validate(lq); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	items, err := h.store.List(r.Context(), model.Filter{EmployeeID: lq.EmployeeID, ProjectID: lq.ProjectID, Limit: lq.Limit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Delete soft-deletes the assignment, then releases its capacity slot. A
// failed release is logged; the project service also releases the slot when
// it sees AssignmentRemoved.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentID(w, r)
	if !ok {
		return
	}
	a, deleted, err := h.store.SoftDelete(r.Context(), id, model.ReasonRemoved)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if deleted {
		if err := h.projects.Release(context.WithoutCancel(r.Context()), a.ProjectID, a.ID); err != nil {
			h.logger.Warn("capacity release failed", "assignment_id", a.ID, "project_id", a.ProjectID, "err", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSagaRuns(w http.ResponseWriter, r *http.Request) {
	status := model.SagaStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.SagaCompleted, model.SagaFailed, model.SagaCompensated, model.SagaCompensationFailed:
	default:
		httpx.WriteValidationError(w, r, []httpx.FieldError{{Field: "status", Message: "must be one of completed, failed, compensated, compensation_failed"}})
		return
	}
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 500 {
			httpx.WriteValidationError(w, r, []httpx.FieldError{{Field: "limit", Message: "must be an integer between 0 and 500"}})
			return
		}
		limit = n
	}
	runs, err := h.runs.List(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": runs})
}

func periodFieldError(explicitFrom bool) httpx.FieldError {
	if explicitFrom {
		return httpx.FieldError{Field: "valid_to", Message: "must not be before valid_from"}
	}
	return httpx.FieldError{Field: "valid_to", Message: "must not be in the past when valid_from is omitted"}
}

func assignmentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteValidationError(w, r, []httpx.FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return "", false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidPeriod):
		httpx.WriteValidationError(w, r, []httpx.FieldError{periodFieldError(true)})
	case errors.Is(err, model.ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, httpx.CodeNotFound, err.Error())
	case errors.Is(err, model.ErrEmployeeNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, httpx.CodeNotFound, err.Error(),
			httpx.FieldError{Field: "employee_id", Message: "does not exist"})
	case errors.Is(err, model.ErrProjectNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, httpx.CodeNotFound, err.Error(),
			httpx.FieldError{Field: "project_id", Message: "does not exist"})
	case errors.Is(err, model.ErrEmployeeInactive):
		httpx.WriteError(w, r, http.StatusConflict, httpx.CodeInactive, err.Error())
	case errors.Is(err, model.ErrCapacityExceeded):
		httpx.WriteError(w, r, http.StatusConflict, httpx.CodeCapacityExceeded, err.Error())
	case errors.Is(err, model.ErrProjectClosed):
		httpx.WriteError(w, r, http.StatusConflict, httpx.CodeProjectClosed, err.Error())
	case errors.Is(err, model.ErrUpstream):
		h.logger.Warn("upstream failure", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusBadGateway, httpx.CodeUpstream, "a dependent service failed")
	default:
		h.logger.Error("assignment request failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "internal error")
	}
}
