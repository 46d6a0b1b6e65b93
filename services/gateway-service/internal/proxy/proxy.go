// Package proxy routes the public /api/v1 surface to the service that owns
// each resource.
package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Route sends every request under Prefix (relative to /api/v1) to Upstream.
// The path is forwarded unchanged.
type Route struct {
	Prefix   string
	Upstream string
}

// New builds a router for routes. Upstream failures become a 502 in the
// shared error envelope.
func New(routes []Route, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	transport := otelhttp.NewTransport(http.DefaultTransport)
	for _, route := range routes {
		target, err := url.Parse(route.Upstream)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid upstream %q for %s", route.Upstream, route.Prefix)
		}
		prefix := "/" + strings.Trim(route.Prefix, "/")
		p := &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
				if id := httpx.RequestIDFromContext(pr.In.Context()); id != "" {
					pr.Out.Header.Set(httpx.RequestIDHeader, id)
				}
			},
			Transport: transport,
			ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
				logger.Error("upstream request failed", "upstream", target.Host, "path", req.URL.Path, "err", err)
				httpx.WriteError(w, req, http.StatusBadGateway, httpx.CodeUpstream, "upstream unavailable")
			},
		}
		r.Handle(prefix, p)
		r.Handle(prefix+"/*", p)
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(w, req, http.StatusNotFound, httpx.CodeNotFound, "no route")
	})
	return r, nil
}
