package httpx

import (
	"net/http"
	"slices"
	"strings"
)

// CORSPolicy lists the browser origins allowed to call the API. Methods and
// headers default to what the staffing APIs accept.
type CORSPolicy struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete}
	defaultCORSHeaders = []string{"Authorization", "Content-Type", RequestIDHeader}
)

// WithCORS answers preflights and tags responses for allowed origins. An
// empty origin list disables CORS entirely. "*" allows any origin.
func WithCORS(p CORSPolicy) Middleware {
	origins := trimAll(p.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	anyOrigin := slices.Contains(origins, "*")
	methods := strings.Join(orDefault(trimAll(p.AllowedMethods), defaultCORSMethods), ", ")
	headers := strings.Join(orDefault(trimAll(p.AllowedHeaders), defaultCORSHeaders), ", ")

	allowed := func(origin string) bool {
		return anyOrigin || slices.ContainsFunc(origins, func(o string) bool { return strings.EqualFold(o, origin) })
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")
			if origin == "" || !allowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orDefault(values, def []string) []string {
	if len(values) == 0 {
		return def
	}
	return values
}
