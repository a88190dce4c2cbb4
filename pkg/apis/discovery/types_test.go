package discovery

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDecodeDocument(t *testing.T) {
	raw := `{
  "apis": [
    {
      "id": "shop-orders",
      "name": "Orders API",
      "namespace": "shop",
      "service_name": "orders",
      "url": "http://orders.shop.svc.cluster.local:9090/swagger/openapi.yml",
      "description": null,
      "last_updated": "2026-08-24T10:00:00Z",
      "available": true,
      "spec": "{\"openapi\":\"3.0.0\"}"
    }
  ],
  "last_updated": "2026-08-24T10:00:00Z"
}`

	doc, err := DecodeDocument([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}
	if len(doc.APIs) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(doc.APIs))
	}

	entry := doc.APIs[0]
	if entry.ID != "shop-orders" || entry.ServiceName != "orders" || !entry.Available {
		t.Errorf("Unexpected entry decoded: %+v", entry)
	}
	if !entry.LastUpdated.Equal(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected timestamp: %v", entry.LastUpdated)
	}
	if entry.Description != nil {
		t.Errorf("Expected absent description, got %q", *entry.Description)
	}
}

func TestDecodeDocument_EmptyAndInvalid(t *testing.T) {
	doc, err := DecodeDocument(nil)
	if err != nil {
		t.Fatalf("Empty input should decode as empty document, got error: %v", err)
	}
	if len(doc.APIs) != 0 {
		t.Errorf("Expected empty document, got %d entries", len(doc.APIs))
	}

	if _, err := DecodeDocument([]byte("not json")); err == nil {
		t.Error("Expected error for invalid document")
	}
}

func TestEncodeDocument_WireFormat(t *testing.T) {
	description := "order management"
	doc := Document{
		APIs: []Entry{
			{
				ID:          "shop-orders",
				Name:        "Orders API",
				Namespace:   "shop",
				ServiceName: "orders",
				URL:         "http://orders.shop.svc.cluster.local:9090/swagger/openapi.yml",
				Description: &description,
				LastUpdated: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
				Available:   true,
				Spec:        `{"openapi":"3.0.0"}`,
			},
		},
		LastUpdated: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}

	data, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("EncodeDocument failed: %v", err)
	}

	// The viewer contract uses snake_case keys and RFC3339 timestamps.
	encoded := string(data)
	for _, want := range []string{`"service_name": "orders"`, `"last_updated": "2026-08-24T10:00:00Z"`, `"apis"`} {
		if !strings.Contains(encoded, want) {
			t.Errorf("Encoded document missing %s:\n%s", want, encoded)
		}
	}
}

func TestEntryKeyID(t *testing.T) {
	key := EntryKey{Namespace: "shop", Service: "orders"}
	if key.ID() != "shop-orders" {
		t.Errorf("ID() = %q, want shop-orders", key.ID())
	}
}

func TestPlaceholderSpec(t *testing.T) {
	spec := PlaceholderSpec("Orders API", "API documentation not available")

	var parsed struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"info"`
	}
	if err := json.Unmarshal([]byte(spec), &parsed); err != nil {
		t.Fatalf("Placeholder spec is not valid JSON: %v", err)
	}
	if parsed.OpenAPI != "3.0.0" {
		t.Errorf("openapi = %q, want 3.0.0", parsed.OpenAPI)
	}
	if parsed.Info.Title != "Orders API" {
		t.Errorf("title = %q, want Orders API", parsed.Info.Title)
	}
	if parsed.Info.Description != "API documentation not available" {
		t.Errorf("description = %q", parsed.Info.Description)
	}
}

func TestNormalizeSpec(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "json passes through", input: `{"openapi": "3.0.0", "paths": {}}`},
		{name: "yaml converts to json", input: "openapi: 3.0.0\ninfo:\n  title: Orders API\n"},
		{name: "invalid json rejected", input: `{"openapi": `, wantErr: true},
		{name: "invalid yaml rejected", input: "openapi: [unclosed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NormalizeSpec(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeSpec failed: %v", err)
			}
			if !json.Valid(out) {
				t.Errorf("Output is not valid JSON: %s", out)
			}
		})
	}
}
