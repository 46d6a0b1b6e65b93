package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/services/employee-service/internal/model"
)

// Store is implemented by storage.Repository.
type Store interface {
	Create(ctx context.Context, fullName, email string) (model.Employee, error)
	Get(ctx context.Context, id string) (model.Employee, error)
	List(ctx context.Context, f model.ListFilter) ([]model.Employee, int, error)
	Update(ctx context.Context, id string, patch model.Patch) (model.Employee, error)
	Deactivate(ctx context.Context, id string) (model.Employee, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Routes returns the router mounted under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/employees", h.List)
	r.Post("/employees", h.Create)
	r.Get("/employees/{id}", h.Get)
	r.Patch("/employees/{id}", h.Update)
	r.Post("/employees/{id}/deactivate", h.Deactivate)
	return r
}

type createRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidJSON, err.Error())
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fields := httpx.Validate(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	e, err := h.store.Create(r.Context(), req.FullName, req.Email)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	e, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

type listResponse struct {
	Data       []model.Employee `json:"data"`
	Pagination model.Pagination `json:"pagination"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, fields := parseListFilter(r)
	if fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}
	list, total, err := h.store.List(r.Context(), f)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Employee{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Data: list, Pagination: model.NewPagination(f, total)})
}

func parseListFilter(r *http.Request) (model.ListFilter, []httpx.FieldError) {
	q := r.URL.Query()
	f := model.ListFilter{Page: 1, PerPage: model.DefaultPerPage}
	var fields []httpx.FieldError

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields = append(fields, httpx.FieldError{Field: "page", Message: "must be a positive integer"})
		}
		f.Page = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > model.MaxPerPage {
			fields = append(fields, httpx.FieldError{Field: "per_page", Message: "must be between 1 and 100"})
		}
		f.PerPage = n
	}
	switch q.Get("status") {
	case "":
	case "active":
		f.Active = boolPtr(true)
	case "inactive":
		f.Active = boolPtr(false)
	default:
		fields = append(fields, httpx.FieldError{Field: "status", Message: "must be active or inactive"})
	}
	return f, fields
}

func boolPtr(b bool) *bool { return &b }

type updateRequest struct {
	FullName *string `json:"full_name" validate:"omitnil,min=1,max=200"`
	Email    *string `json:"email" validate:"omitnil,email,max=320"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidJSON, err.Error())
		return
	}
	if req.FullName != nil {
		v := strings.TrimSpace(*req.FullName)
		req.FullName = &v
	}
	if req.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &v
	}
	if fields := httpx.Validate(req); fields != nil {
		httpx.WriteValidationError(w, r, fields)
		return
	}

	e, err := h.store.Update(r.Context(), id, model.Patch{FullName: req.FullName, Email: req.Email})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	e, err := h.store.Deactivate(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

func employeeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteValidationError(w, r, []httpx.FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return "", false
	}
	return id, true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, httpx.CodeNotFound, err.Error())
	case errors.Is(err, model.ErrEmailTaken):
		httpx.WriteError(w, r, http.StatusConflict, httpx.CodeConflict, err.Error(),
			httpx.FieldError{Field: "email", Message: "is already in use"})
	default:
		h.logger.Error("employee store failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "internal error")
	}
}
