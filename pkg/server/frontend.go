// Package server implements the documentation viewer: it caches the
// discovery catalogue published by the operator and renders it through
// pluggable documentation frontends.
package server

import (
	"fmt"
	"html/template"
	"os"
	"strings"

	"k8s.io/klog/v2"
)

// APIInfo is the view model handed to frontends
type APIInfo struct {
	ID          string
	Name        string
	Description string
	SpecURL     string
	Available   bool
}

// Frontend renders the catalogue as a documentation UI. Implementations are
// selected by configuration at startup.
type Frontend interface {
	Name() string
	RenderCatalogue(apis []APIInfo) (string, error)
	RenderEmptyState() (string, error)
}

// FrontendManager holds the configured frontend instances
type FrontendManager struct {
	frontends       map[string]Frontend
	defaultFrontend string
}

// NewFrontendManagerFromEnv builds the manager from ENABLED_FRONTENDS and
// DEFAULT_FRONTEND. Unknown names are logged and skipped; with nothing
// enabled, scalar is used.
func NewFrontendManagerFromEnv() *FrontendManager {
	enabled := strings.ToLower(os.Getenv("ENABLED_FRONTENDS"))
	if enabled == "" {
		enabled = "scalar"
	}

	manager := &FrontendManager{frontends: map[string]Frontend{}}
	for _, name := range strings.Split(enabled, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "scalar":
			manager.frontends[name] = NewScalarFrontend(scalarOptionsFromEnv())
		case "redoc":
			manager.frontends[name] = NewRedocFrontend(redocOptionsFromEnv())
		case "":
		default:
			klog.Warningf("Unknown frontend %q enabled in config, skipping", name)
		}
	}
	if len(manager.frontends) == 0 {
		manager.frontends["scalar"] = NewScalarFrontend(scalarOptionsFromEnv())
	}

	wanted := strings.ToLower(os.Getenv("DEFAULT_FRONTEND"))
	if _, ok := manager.frontends[wanted]; ok {
		manager.defaultFrontend = wanted
	} else {
		for name := range manager.frontends {
			manager.defaultFrontend = name
			break
		}
	}
	klog.Infof("Enabled frontends: %v (default: %s)", manager.names(), manager.defaultFrontend)
	return manager
}

// Get returns the frontend by name, or nil
func (fm *FrontendManager) Get(name string) Frontend {
	return fm.frontends[name]
}

// Default returns the frontend served at the root path
func (fm *FrontendManager) Default() Frontend {
	return fm.frontends[fm.defaultFrontend]
}

func (fm *FrontendManager) names() []string {
	names := make([]string, 0, len(fm.frontends))
	for name := range fm.frontends {
		names = append(names, name)
	}
	return names
}

// ScalarOptions configures the scalar frontend
type ScalarOptions struct {
	Theme       string
	Layout      string
	DarkMode    bool
	ShowSidebar bool
}

func scalarOptionsFromEnv() ScalarOptions {
	opts := ScalarOptions{Theme: "purple", Layout: "modern", ShowSidebar: true}
	if theme := os.Getenv("SCALAR_THEME"); theme != "" {
		opts.Theme = theme
	}
	if layout := os.Getenv("SCALAR_LAYOUT"); layout != "" {
		opts.Layout = layout
	}
	opts.DarkMode = os.Getenv("SCALAR_DARK_MODE") == "true"
	if v := os.Getenv("SCALAR_SHOW_SIDEBAR"); v != "" {
		opts.ShowSidebar = v == "true"
	}
	return opts
}

// RedocOptions configures the redoc frontend
type RedocOptions struct {
	ExpandResponses    string
	RequiredPropsFirst bool
}

func redocOptionsFromEnv() RedocOptions {
	opts := RedocOptions{ExpandResponses: "200,201,400,401,403,404", RequiredPropsFirst: true}
	if v := os.Getenv("REDOC_EXPAND_RESPONSES"); v != "" {
		opts.ExpandResponses = v
	}
	if v := os.Getenv("REDOC_REQUIRED_PROPS_FIRST"); v != "" {
		opts.RequiredPropsFirst = v == "true"
	}
	return opts
}

var catalogueTemplate = template.Must(template.New("catalogue").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>API Documentation</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <style>
    body { margin: 0; font-family: sans-serif; }
    nav { padding: 8px 16px; background: #1a1a2e; color: #fff; display: flex; gap: 12px; align-items: center; }
    nav select { padding: 4px; }
    .unavailable { color: #d9534f; font-size: 0.85em; margin-left: 6px; }
  </style>
</head>
<body>
  <nav>
    <strong>API Documentation</strong>
    <select id="api-selector" onchange="loadApi(this.value)">
      {{range .APIs}}<option value="{{.SpecURL}}">{{.Name}}{{if not .Available}} (unavailable){{end}}</option>{{end}}
    </select>
  </nav>
  <div id="viewer"></div>
  {{.ViewerScript}}
</body>
</html>
`))

var emptyTemplate = template.Must(template.New("empty").Parse(`<!DOCTYPE html>
<html>
<head><title>API Documentation</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 10em;">
  <h1>No APIs discovered yet</h1>
  <p>Annotate a Service with <code>api-doc.io/enabled: "true"</code> to publish its documentation.</p>
</body>
</html>
`))

type templateData struct {
	APIs         []APIInfo
	ViewerScript template.HTML
}

func renderCatalogue(apis []APIInfo, viewerScript string) (string, error) {
	var sb strings.Builder
	err := catalogueTemplate.Execute(&sb, templateData{APIs: apis, ViewerScript: template.HTML(viewerScript)})
	if err != nil {
		return "", fmt.Errorf("failed to render catalogue: %w", err)
	}
	return sb.String(), nil
}

func renderEmptyState() (string, error) {
	var sb strings.Builder
	if err := emptyTemplate.Execute(&sb, nil); err != nil {
		return "", fmt.Errorf("failed to render empty state: %w", err)
	}
	return sb.String(), nil
}

// ScalarFrontend renders documentation through the scalar api-reference
// viewer.
type ScalarFrontend struct {
	opts ScalarOptions
}

// NewScalarFrontend creates a scalar frontend with the given options
func NewScalarFrontend(opts ScalarOptions) *ScalarFrontend {
	return &ScalarFrontend{opts: opts}
}

// Name implements Frontend
func (f *ScalarFrontend) Name() string { return "scalar" }

// RenderCatalogue implements Frontend
func (f *ScalarFrontend) RenderCatalogue(apis []APIInfo) (string, error) {
	if len(apis) == 0 {
		return f.RenderEmptyState()
	}
	script := fmt.Sprintf(`<script>
    function loadApi(url) {
      const viewer = document.getElementById('viewer');
      viewer.innerHTML = '';
      const ref = document.createElement('script');
      ref.id = 'api-reference';
      ref.dataset.url = url;
      ref.dataset.configuration = JSON.stringify({theme: %q, layout: %q, darkMode: %t, showSidebar: %t});
      viewer.appendChild(ref);
      const loader = document.createElement('script');
      loader.src = 'https://cdn.jsdelivr.net/npm/@scalar/api-reference';
      viewer.appendChild(loader);
    }
    loadApi(document.getElementById('api-selector').value);
  </script>`, f.opts.Theme, f.opts.Layout, f.opts.DarkMode, f.opts.ShowSidebar)
	return renderCatalogue(apis, script)
}

// RenderEmptyState implements Frontend
func (f *ScalarFrontend) RenderEmptyState() (string, error) {
	return renderEmptyState()
}

// RedocFrontend renders documentation through the redoc viewer.
type RedocFrontend struct {
	opts RedocOptions
}

// NewRedocFrontend creates a redoc frontend with the given options
func NewRedocFrontend(opts RedocOptions) *RedocFrontend {
	return &RedocFrontend{opts: opts}
}

// Name implements Frontend
func (f *RedocFrontend) Name() string { return "redoc" }

// RenderCatalogue implements Frontend
func (f *RedocFrontend) RenderCatalogue(apis []APIInfo) (string, error) {
	if len(apis) == 0 {
		return f.RenderEmptyState()
	}
	script := fmt.Sprintf(`<script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
  <script>
    function loadApi(url) {
      Redoc.init(url, {expandResponses: %q, requiredPropsFirst: %t}, document.getElementById('viewer'));
    }
    loadApi(document.getElementById('api-selector').value);
  </script>`, f.opts.ExpandResponses, f.opts.RequiredPropsFirst)
	return renderCatalogue(apis, script)
}

// RenderEmptyState implements Frontend
func (f *RedocFrontend) RenderEmptyState() (string, error) {
	return renderEmptyState()
}
