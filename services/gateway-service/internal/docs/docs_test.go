package docs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	require.NoError(t, Register(r))
	return r
}

func TestOpenAPIJSON(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, JSONPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	for _, p := range []string{
		"/employees", "/employees/{id}", "/employees/{id}/deactivate",
		"/projects", "/projects/{id}", "/projects/{id}/complete", "/projects/{id}/reservations/{assignment_id}",
		"/assignments", "/assignments/{id}", "/saga-runs",
	} {
		assert.Contains(t, doc.Paths, p)
	}
}

func TestEmployeeListParametersDocumented(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, JSONPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths map[string]struct {
			Get struct {
				Parameters []struct {
					Name string `json:"name"`
				} `json:"parameters"`
			} `json:"get"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	var names []string
	for _, p := range doc.Paths["/employees"].Get.Parameters {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"page", "per_page", "status"}, names)
}

func TestOpenAPIYAMLAndUI(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, YAMLPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, UIPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "swagger-ui")
	assert.Contains(t, rec.Body.String(), "openapi.json")
}
