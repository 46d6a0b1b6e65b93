package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadyz(t *testing.T) {
	ok := ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }}
	mux := NewBaseMux(nil, ok)

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	failing := ReadyCheck{Name: "kafka", Check: func(context.Context) error { return errors.New("down") }}
	mux = NewBaseMux(nil, ok, failing)
	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rw.Code)
	}
	var body readyResponse
	if err := json.NewDecoder(rw.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["kafka"] != "down" || body.Checks["db"] != "ok" {
		t.Fatalf("unexpected checks: %+v", body.Checks)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Fatal("expected debug level")
	}
	if ParseLevel("nonsense").String() != "INFO" {
		t.Fatal("expected info fallback")
	}
}
