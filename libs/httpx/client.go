package httpx

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewClient returns the client services use to call each other: traced with
// otelhttp and forwarding the inbound request id.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(requestIDTransport{next: http.DefaultTransport}),
	}
}

type requestIDTransport struct {
	next http.RoundTripper
}

func (t requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id := RequestIDFromContext(req.Context()); id != "" && req.Header.Get(RequestIDHeader) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, id)
	}
	return t.next.RoundTrip(req)
}
