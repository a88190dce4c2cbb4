package annotations

import (
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/apidoc-io/openapi-discovery/pkg/config"
)

func TestDecode(t *testing.T) {
	description := "internal orders API"

	tests := []struct {
		name        string
		annotations map[string]string
		expected    Settings
	}{
		{
			name:        "no annotations yields disabled defaults",
			annotations: nil,
			expected: Settings{
				Enabled: false,
				Path:    config.DefaultAPIDocPath,
				Name:    "orders API",
			},
		},
		{
			name: "enabled with all annotations set",
			annotations: map[string]string{
				config.EnabledAnnotation:     "true",
				config.PathAnnotation:        "/api/openapi.json",
				config.NameAnnotation:        "Orders API",
				config.DescriptionAnnotation: description,
			},
			expected: Settings{
				Enabled:     true,
				Path:        "/api/openapi.json",
				Name:        "Orders API",
				Description: &description,
			},
		},
		{
			name: "enable value other than literal true is disabled",
			annotations: map[string]string{
				config.EnabledAnnotation: "True",
			},
			expected: Settings{
				Enabled: false,
				Path:    config.DefaultAPIDocPath,
				Name:    "orders API",
			},
		},
		{
			name: "enabled without overrides keeps defaults",
			annotations: map[string]string{
				config.EnabledAnnotation: "true",
			},
			expected: Settings{
				Enabled: true,
				Path:    config.DefaultAPIDocPath,
				Name:    "orders API",
			},
		},
		{
			name: "empty path annotation overrides the default",
			annotations: map[string]string{
				config.EnabledAnnotation: "true",
				config.PathAnnotation:    "",
			},
			expected: Settings{
				Enabled: true,
				Path:    "",
				Name:    "orders API",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &corev1.Service{
				ObjectMeta: metav1.ObjectMeta{
					Name:        "orders",
					Namespace:   "shop",
					Annotations: tt.annotations,
				},
			}

			got := Decode(service)

			if got.Enabled != tt.expected.Enabled {
				t.Errorf("Enabled = %t, want %t", got.Enabled, tt.expected.Enabled)
			}
			if got.Path != tt.expected.Path {
				t.Errorf("Path = %q, want %q", got.Path, tt.expected.Path)
			}
			if got.Name != tt.expected.Name {
				t.Errorf("Name = %q, want %q", got.Name, tt.expected.Name)
			}
			switch {
			case tt.expected.Description == nil && got.Description != nil:
				t.Errorf("Description = %q, want absent", *got.Description)
			case tt.expected.Description != nil && got.Description == nil:
				t.Errorf("Description absent, want %q", *tt.expected.Description)
			case tt.expected.Description != nil && *got.Description != *tt.expected.Description:
				t.Errorf("Description = %q, want %q", *got.Description, *tt.expected.Description)
			}
		})
	}
}
