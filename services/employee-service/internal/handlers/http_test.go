package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/services/employee-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const empID = "7d1c2b8e-8f5a-4a4e-9a3b-1f0c2d3e4f50"

type fakeStore struct {
	employees map[string]model.Employee
	createErr error
	listed    *model.ListFilter
}

func (f *fakeStore) Create(_ context.Context, fullName, email string) (model.Employee, error) {
	if f.createErr != nil {
		return model.Employee{}, f.createErr
	}
	e := model.Employee{ID: empID, FullName: fullName, Email: email, Active: true, Version: 1}
	f.employees[e.ID] = e
	return e, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (model.Employee, error) {
	e, ok := f.employees[id]
	if !ok {
		return model.Employee{}, model.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) List(_ context.Context, filter model.ListFilter) ([]model.Employee, int, error) {
	f.listed = &filter
	var all []model.Employee
	for _, e := range f.employees {
		if filter.Active == nil || e.Active == *filter.Active {
			all = append(all, e)
		}
	}
	slices.SortFunc(all, func(a, b model.Employee) int { return strings.Compare(a.ID, b.ID) })
	start := min(filter.Offset(), len(all))
	end := min(start+filter.PerPage, len(all))
	return all[start:end], len(all), nil
}

func (f *fakeStore) Update(_ context.Context, id string, patch model.Patch) (model.Employee, error) {
	e, ok := f.employees[id]
	if !ok {
		return model.Employee{}, model.ErrNotFound
	}
	if len(patch.Apply(&e)) > 0 {
		e.Version++
	}
	f.employees[id] = e
	return e, nil
}

func (f *fakeStore) Deactivate(_ context.Context, id string) (model.Employee, error) {
	e, ok := f.employees[id]
	if !ok {
		return model.Employee{}, model.ErrNotFound
	}
	e.Active = false
	f.employees[id] = e
	return e, nil
}

func newTestServer(store *fakeStore) http.Handler {
	h := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return httpx.Chain(h.Routes(), httpx.WithRequestID)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var env struct {
		Error httpx.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestCreate_ValidationFields(t *testing.T) {
	srv := newTestServer(&fakeStore{employees: map[string]model.Employee{}})

	req := httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(`{"full_name":"","email":"nope"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, httpx.CodeValidation, body.Code)
	assert.NotEmpty(t, body.RequestID)
	fields := map[string]string{}
	for _, f := range body.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "is required", fields["full_name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
}

func TestCreate_UnknownFieldRejected(t *testing.T) {
	srv := newTestServer(&fakeStore{employees: map[string]model.Employee{}})

	req := httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(`{"full_name":"Ada","email":"ada@example.com","salary":1}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httpx.CodeInvalidJSON, decodeError(t, rec).Code)
}

func TestCreate_Created(t *testing.T) {
	store := &fakeStore{employees: map[string]model.Employee{}}
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(`{"full_name":" Ada Lovelace ","email":"ADA@example.com"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got model.Employee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Ada Lovelace", got.FullName)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.True(t, got.Active)
}

func TestCreate_EmailConflict(t *testing.T) {
	srv := newTestServer(&fakeStore{employees: map[string]model.Employee{}, createErr: model.ErrEmailTaken})

	req := httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(`{"full_name":"Ada","email":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httpx.CodeConflict, decodeError(t, rec).Code)
}

func TestGet_NotFoundAndBadID(t *testing.T) {
	srv := newTestServer(&fakeStore{employees: map[string]model.Employee{}})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees/"+empID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httpx.CodeNotFound, decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httpx.CodeValidation, decodeError(t, rec).Code)
}

func TestUpdate_PartialPatch(t *testing.T) {
	store := &fakeStore{employees: map[string]model.Employee{
		empID: {ID: empID, FullName: "Ada Lovelace", Email: "ada@example.com", Active: true, Version: 1},
	}}
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodPatch, "/employees/"+empID, strings.NewReader(`{"full_name":"Ada King"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada King", store.employees[empID].FullName)
	assert.Equal(t, "ada@example.com", store.employees[empID].Email)
	assert.Equal(t, int64(2), store.employees[empID].Version)
}

func TestDeactivate(t *testing.T) {
	store := &fakeStore{employees: map[string]model.Employee{
		empID: {ID: empID, FullName: "Ada", Active: true, Version: 1},
	}}
	srv := newTestServer(store)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/employees/"+empID+"/deactivate", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, store.employees[empID].Active)
}

func seedEmployees(n int, inactiveEvery int) map[string]model.Employee {
	out := make(map[string]model.Employee, n)
	for i := range n {
		id := fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
		out[id] = model.Employee{ID: id, FullName: fmt.Sprintf("Employee %d", i), Active: inactiveEvery == 0 || i%inactiveEvery != 0}
	}
	return out
}

type listBody struct {
	Data       []model.Employee `json:"data"`
	Pagination model.Pagination `json:"pagination"`
}

func TestList_DefaultsAndPages(t *testing.T) {
	store := &fakeStore{employees: seedEmployees(45, 0)}
	srv := newTestServer(store)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, model.DefaultPerPage)
	assert.Equal(t, model.Pagination{Page: 1, PerPage: 20, Total: 45, TotalPages: 3}, body.Pagination)
	assert.Nil(t, store.listed.Active)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees?page=3&per_page=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body = listBody{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 5)
	assert.Equal(t, 3, body.Pagination.Page)
}

func TestList_StatusFilter(t *testing.T) {
	store := &fakeStore{employees: seedEmployees(10, 2)}
	srv := newTestServer(store)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees?status=inactive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, store.listed.Active)
	assert.False(t, *store.listed.Active)
	assert.Equal(t, 5, body.Pagination.Total)
	for _, e := range body.Data {
		assert.False(t, e.Active)
	}
}

func TestList_EmptyPageIsArray(t *testing.T) {
	srv := newTestServer(&fakeStore{employees: map[string]model.Employee{}})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees?page=4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
	assert.Contains(t, rec.Body.String(), `"total_pages":0`)
}

func TestList_RejectsBadQuery(t *testing.T) {
	cases := map[string]string{
		"/employees?page=0":         "page",
		"/employees?page=first":     "page",
		"/employees?per_page=101":   "per_page",
		"/employees?per_page=0":     "per_page",
		"/employees?status=retired": "status",
	}
	for target, field := range cases {
		t.Run(target, func(t *testing.T) {
			store := &fakeStore{employees: map[string]model.Employee{}}
			srv := newTestServer(store)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, httpx.CodeValidation, body.Code)
			require.Len(t, body.Fields, 1)
			assert.Equal(t, field, body.Fields[0].Field)
			assert.Nil(t, store.listed)
		})
	}
}
