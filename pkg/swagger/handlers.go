package swagger

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// Handlers serve a generated document as JSON, YAML and a Swagger UI page
type Handlers struct {
	title    string
	jsonSpec []byte
	yamlSpec []byte
	ui       *template.Template
}

// NewHandlers encodes the document once for every request
func NewHandlers(doc *Document) (*Handlers, error) {
	jsonSpec, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document as JSON: %w", err)
	}
	yamlSpec, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document as YAML: %w", err)
	}
	return &Handlers{
		title:    doc.Info.Title,
		jsonSpec: jsonSpec,
		yamlSpec: yamlSpec,
		ui:       template.Must(template.New("swagger").Parse(swaggerUITemplate)),
	}, nil
}

// RegisterRoutes registers the documentation routes with the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/docs.json", h.serveJSON).Methods("GET")
	router.HandleFunc("/docs.yaml", h.serveYAML).Methods("GET")
	router.HandleFunc("/docs", h.serveUI).Methods("GET")
}

func (h *Handlers) serveJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openapi+json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(h.jsonSpec)
}

func (h *Handlers) serveYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(h.yamlSpec)
}

func (h *Handlers) serveUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.ui.Execute(w, struct{ Title, SpecURL string }{h.title, "/docs.json"}); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}} - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
  <link rel="icon" type="image/png" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/favicon-32x32.png" sizes="32x32" />
  <link rel="icon" type="image/png" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/favicon-16x16.png" sizes="16x16" />
  <style>
    html {
      box-sizing: border-box;
      overflow: -moz-scrollbars-vertical;
      overflow-y: scroll;
    }
    *, *:before, *:after {
      box-sizing: inherit;
    }
    body {
      margin:0;
      padding:0;
    }
  </style>
</head>
<body>
<div id="swagger-ui"></div>

<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-standalone-preset.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    url: "{{.SpecURL}}",
    dom_id: '#swagger-ui',
    deepLinking: true,
    presets: [
      SwaggerUIBundle.presets.apis,
      SwaggerUIStandalonePreset
    ],
    plugins: [
      SwaggerUIBundle.plugins.DownloadUrl
    ],
    layout: "StandaloneLayout",
    requestInterceptor: function(request) {
      // Add Authorization header if token is stored in localStorage
      const token = localStorage.getItem('gantry_api_token');
      if (token) {
        request.headers['Authorization'] = 'Bearer ' + token;
      }
      return request;
    }
  });
};
</script>
</body>
</html>`
