package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/apidoc-io/openapi-discovery/pkg/apis/discovery"
)

func newTestServer(t *testing.T, doc discovery.Document) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	discoveryPath := writeDiscoveryFile(t, dir, doc)

	cache, err := NewCache(discoveryPath, filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	if err := cache.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	frontends := &FrontendManager{
		frontends: map[string]Frontend{
			"scalar": NewScalarFrontend(ScalarOptions{Theme: "purple", Layout: "modern", ShowSidebar: true}),
			"redoc":  NewRedocFrontend(RedocOptions{ExpandResponses: "200", RequiredPropsFirst: true}),
		},
		defaultFrontend: "scalar",
	}

	srv := NewServer(cache, frontends, prometheus.NewRegistry())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_ListAPIs(t *testing.T) {
	ts := newTestServer(t, testDocument())

	resp, err := http.Get(ts.URL + "/api/apis")
	if err != nil {
		t.Fatalf("GET /api/apis failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var apis []discovery.Entry
	if err := json.NewDecoder(resp.Body).Decode(&apis); err != nil {
		t.Fatalf("Failed to decode API list: %v", err)
	}
	if len(apis) != 1 || apis[0].ID != "shop-orders" {
		t.Errorf("Unexpected API list: %+v", apis)
	}
}

func TestServer_ServeSpec(t *testing.T) {
	ts := newTestServer(t, testDocument())

	resp, err := http.Get(ts.URL + "/api/apis/shop-orders/spec")
	if err != nil {
		t.Fatalf("GET spec failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var spec map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
		t.Fatalf("Spec is not JSON: %v", err)
	}

	resp404, err := http.Get(ts.URL + "/api/apis/unknown/spec")
	if err != nil {
		t.Fatalf("GET unknown spec failed: %v", err)
	}
	defer resp404.Body.Close()
	if resp404.StatusCode != http.StatusNotFound {
		t.Errorf("Status for unknown API = %d, want 404", resp404.StatusCode)
	}
}

func TestServer_Frontends(t *testing.T) {
	ts := newTestServer(t, testDocument())

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{name: "default frontend at root", path: "/", status: http.StatusOK, contains: "Orders API"},
		{name: "scalar by name", path: "/docs/scalar", status: http.StatusOK, contains: "api-selector"},
		{name: "redoc by name", path: "/docs/redoc", status: http.StatusOK, contains: "redoc"},
		{name: "unknown frontend", path: "/docs/swaggerui", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s failed: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Fatalf("Status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.contains != "" {
				body, err := io.ReadAll(resp.Body)
				if err != nil {
					t.Fatalf("Failed to read body: %v", err)
				}
				if !strings.Contains(string(body), tt.contains) {
					t.Errorf("Response body does not contain %q", tt.contains)
				}
			}
		})
	}
}

func TestServer_EmptyCatalogueRendersEmptyState(t *testing.T) {
	ts := newTestServer(t, discovery.Document{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "No APIs discovered yet") {
		t.Error("Expected empty state markup")
	}
}

func TestServer_Healthz(t *testing.T) {
	ts := newTestServer(t, discovery.Document{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
}
