// Package docs serves the public API description and a browsable UI for it.
package docs

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"sigs.k8s.io/yaml"
)

const (
	YAMLPath = "/api-docs/openapi.yaml"
	JSONPath = "/api-docs/openapi.json"
	UIPath   = "/docs"
)

//go:embed openapi.yaml
var openAPIYAML []byte

var uiPage = template.Must(template.New("ui").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>StaffSync API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
  <script>
    window.onload = () => { window.ui = SwaggerUIBundle({ url: {{.}}, dom_id: "#swagger-ui" }); };
  </script>
</body>
</html>
`))

// Register adds the document and UI routes to r. The JSON rendering is built
// once up front so a malformed document fails at startup.
func Register(r chi.Router) error {
	asJSON, err := yaml.YAMLToJSON(openAPIYAML)
	if err != nil {
		return fmt.Errorf("openapi to json: %w", err)
	}

	r.Get(YAMLPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openAPIYAML)
	})
	r.Get(JSONPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(asJSON)
	})
	r.Get(UIPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = uiPage.Execute(w, JSONPath)
	})
	return nil
}
