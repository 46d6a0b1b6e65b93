package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_IncludesRequestID(t *testing.T) {
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, "boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	require.Equal(t, http.StatusInternalServerError, rw.Code)
	assert.Equal(t, "req-123", rw.Header().Get(RequestIDHeader))

	var env errorEnvelope
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&env))
	assert.Equal(t, CodeInternal, env.Error.Code)
	assert.Equal(t, "req-123", env.Error.RequestID)
}

func TestWithRequestID_Generates(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rw.Header().Get(RequestIDHeader))
}

type createThing struct {
	EmployeeID string `json:"employee_id" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,max=5"`
	Capacity   int    `json:"capacity" validate:"gte=1"`
}

func TestValidate_FieldErrors(t *testing.T) {
	fields := Validate(createThing{EmployeeID: "nope", Name: "too-long-name", Capacity: 0})
	require.Len(t, fields, 3)

	byField := map[string]string{}
	for _, f := range fields {
		byField[f.Field] = f.Message
	}
	assert.Equal(t, "must be a valid UUID", byField["employee_id"])
	assert.Equal(t, "must be at most 5 characters", byField["name"])
	assert.Equal(t, "must be greater than or equal to 1", byField["capacity"])

	assert.Nil(t, Validate(createThing{EmployeeID: "6f1c1a1e-7c41-4f0e-8a7b-2a3c4d5e6f70", Name: "ok", Capacity: 2}))
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "a", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	require.Error(t, DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	require.Error(t, DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.Error(t, DecodeJSON(req, &v))
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Now()
	assert.True(t, rl.allow("a", now))
	assert.True(t, rl.allow("a", now))
	assert.False(t, rl.allow("a", now))
	assert.True(t, rl.allow("b", now))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	require.Equal(t, http.StatusNoContent, rw.Code)

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	require.Equal(t, http.StatusTooManyRequests, rw.Code)
}

func TestWithCORS(t *testing.T) {
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"https://app.example"}})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	require.Equal(t, http.StatusNoContent, rw.Code)
	assert.Equal(t, "https://app.example", rw.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rw.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
}

func TestWithRecover(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := WithRecover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rw.Code)
}

func TestClient_ForwardsRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
		WriteError(w, r, http.StatusConflict, CodeCapacityExceeded, "full")
	}))
	defer srv.Close()

	ctx := ContextWithRequestID(context.Background(), "req-9")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := NewClient(time.Second).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-9", got)
	body := ReadError(resp)
	assert.Equal(t, CodeCapacityExceeded, body.Code)
}
