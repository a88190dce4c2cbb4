// Package annotations decodes the api-doc.io annotation contract from
// Service metadata. Decoding is pure and never fails: missing or malformed
// values degrade to defaults rather than errors.
package annotations

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/apidoc-io/openapi-discovery/pkg/config"
)

// Settings is the decoded documentation intent for one Service
type Settings struct {
	// Enabled is true only when the enable annotation is the literal "true"
	Enabled bool
	// Path is the documentation path on the service
	Path string
	// Name is the display name of the API
	Name string
	// Description is nil when the annotation is absent
	Description *string
}

// Decode reads the api-doc annotations from obj, applying defaults derived
// from the service name.
func Decode(obj metav1.Object) Settings {
	serviceName := obj.GetName()
	settings := Settings{
		Path: config.DefaultAPIDocPath,
		Name: fmt.Sprintf("%s API", serviceName),
	}

	annotations := obj.GetAnnotations()
	if annotations == nil {
		return settings
	}

	settings.Enabled = annotations[config.EnabledAnnotation] == "true"
	if path, ok := annotations[config.PathAnnotation]; ok {
		settings.Path = path
	}
	if name, ok := annotations[config.NameAnnotation]; ok {
		settings.Name = name
	}
	if description, ok := annotations[config.DescriptionAnnotation]; ok {
		settings.Description = &description
	}

	return settings
}
