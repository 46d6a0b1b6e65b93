package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSagaRunsCounter(t *testing.T) {
	before := testutil.ToFloat64(SagaRuns.WithLabelValues("completed"))
	SagaRuns.WithLabelValues("completed").Inc()
	if got := testutil.ToFloat64(SagaRuns.WithLabelValues("completed")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	EventsDispatched.WithLabelValues("employee.updated.v1", "ok").Inc()

	rw := httptest.NewRecorder()
	Handler().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "staffsync_events_dispatched_total") {
		t.Fatal("expected staffsync_events_dispatched_total in output")
	}
}
