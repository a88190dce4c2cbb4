// Package config provides configuration types and constants for the
// openapi-discovery operator. It defines the annotation contract consumed
// from Service objects, the environment variables read at startup, and the
// intervals driving reconciliation and retry behavior.
package config

import "time"

// Config holds the operator runtime configuration
type Config struct {
	// WatchNamespaces is the namespace scope. Empty means the current
	// namespace; the single element "all" means every namespace; any other
	// content is an explicit allow-list.
	WatchNamespaces []string
	// DiscoveryNamespace is the namespace holding the discovery ConfigMap
	DiscoveryNamespace string
	// DiscoveryConfigMap is the name of the discovery ConfigMap
	DiscoveryConfigMap string
}

const (
	// EnabledAnnotation marks a Service as having API documentation. Only the
	// literal value "true" enables discovery.
	EnabledAnnotation = "api-doc.io/enabled"
	// PathAnnotation overrides the documentation path on the service
	PathAnnotation = "api-doc.io/path"
	// NameAnnotation overrides the display name of the API
	NameAnnotation = "api-doc.io/name"
	// DescriptionAnnotation carries an optional free-text description
	DescriptionAnnotation = "api-doc.io/description"

	// DefaultAPIDocPath is used when the path annotation is absent
	DefaultAPIDocPath = "/swagger/openapi.yml"
	// DefaultServicePort is used when a Service declares no ports
	DefaultServicePort = 8080

	// WatchNamespacesEnv selects the namespace scope ("all", a comma list, or
	// empty for the current namespace)
	WatchNamespacesEnv = "WATCH_NAMESPACES"
	// DiscoveryNamespaceEnv selects where the discovery ConfigMap lives
	DiscoveryNamespaceEnv = "DISCOVERY_NAMESPACE"
	// DiscoveryConfigMapEnv selects the discovery ConfigMap name
	DiscoveryConfigMapEnv = "DISCOVERY_CONFIGMAP"
	// PodNamespaceEnv is the downward-API namespace of the operator pod,
	// used as the "current" namespace
	PodNamespaceEnv = "POD_NAMESPACE"

	// DefaultDiscoveryNamespace is the fallback discovery ConfigMap namespace
	DefaultDiscoveryNamespace = "default"
	// DefaultDiscoveryConfigMap is the fallback discovery ConfigMap name
	DefaultDiscoveryConfigMap = "openapi-discovery"

	// WatchAllNamespaces is the wildcard scope value
	WatchAllNamespaces = "all"
	// WatchCurrentNamespace restricts the scope to the operator's own namespace
	WatchCurrentNamespace = "current"

	// RequeueInterval is the steady-state re-check interval per Service
	RequeueInterval = 300 * time.Second
	// ErrorRequeueInterval is the shortened requeue delay after a reconcile failure
	ErrorRequeueInterval = 30 * time.Second
	// ProbeTimeout bounds every probe and spec fetch request
	ProbeTimeout = 10 * time.Second
)
