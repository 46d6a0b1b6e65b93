package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/model"
)

type Store interface {
	Create(ctx context.Context, name string, capacity int) (model.Project, error)
	Get(ctx context.Context, id string) (model.Project, error)
	Update(ctx context.Context, id string, patch model.Patch) (model.Project, error)
	Complete(ctx context.Context, id string) (model.Project, error)
	Reserve(ctx context.Context, projectID, assignmentID string) (model.Project, error)
	Release(ctx context.Context, projectID, assignmentID string) (model.Project, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/projects", h.Create)
	r.Route("/projects/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Post("/complete", h.Complete)
		r.Put("/reservations/{assignment_id}", h.Reserve)
		r.Delete("/reservations/{assignment_id}", h.Release)
	})
	return r
}

type createRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Capacity *int   `json:"capacity" validate:"required,gte=0,lte=100000"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidJSON, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if fields := httpx.Validate(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	p, err := h.store.Create(r.Context(), req.Name, *req.Capacity)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

type updateRequest struct {
	Name     *string `json:"name" validate:"omitnil,min=1,max=200"`
	Capacity *int    `json:"capacity" validate:"omitnil,gte=0,lte=100000"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidJSON, err.Error())
		return
	}
	if req.Name != nil {
		v := strings.TrimSpace(*req.Name)
		req.Name = &v
	}
	if fields := httpx.Validate(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	p, err := h.store.Update(r.Context(), id, model.Patch{Name: req.Name, Capacity: req.Capacity})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.Complete(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	assignmentID, ok := uuidParam(w, r, "assignment_id")
	if !ok {
		return
	}
	p, err := h.store.Reserve(r.Context(), id, assignmentID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	assignmentID, ok := uuidParam(w, r, "assignment_id")
	if !ok {
		return
	}
	if _, err := h.store.Release(r.Context(), id, assignmentID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := chi.URLParam(r, name)
	if _, err := uuid.Parse(v); err != nil {
		httpx.WriteValidationError(w, r, []httpx.FieldError{{Field: name, Message: "must be a valid UUID"}})
		return "", false
	}
	return v, true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, httpx.CodeNotFound, err.Error())
	case errors.Is(err, model.ErrCapacityExceeded):
		httpx.WriteError(w, r, http.StatusConflict, httpx.CodeCapacityExceeded, err.Error())
	case errors.Is(err, model.ErrProjectClosed):
		httpx.WriteError(w, r, http.StatusConflict, httpx.CodeProjectClosed, err.Error())
	case errors.Is(err, model.ErrCapacityTooLow):
		httpx.WriteError(w, r, http.StatusConflict, httpx.CodeConflict, err.Error(),
			httpx.FieldError{Field: "capacity", Message: "must not be below the current allocation"})
	default:
		h.logger.Error("project store failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "internal error")
	}
}
