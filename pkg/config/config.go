package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"k8s.io/klog/v2"
)

const maxNameLength = 63

// LoadFromEnv builds the operator configuration from environment variables.
// Malformed namespace or ConfigMap names are fatal: the operator refuses to
// start rather than write the catalogue to an unintended location.
func LoadFromEnv() (*Config, error) {
	watchNamespaces, err := ParseWatchNamespaces(os.Getenv(WatchNamespacesEnv))
	if err != nil {
		return nil, err
	}

	discoveryNamespace := os.Getenv(DiscoveryNamespaceEnv)
	if discoveryNamespace == "" {
		discoveryNamespace = DefaultDiscoveryNamespace
	}
	if err := validateName("discovery namespace", discoveryNamespace); err != nil {
		return nil, err
	}

	discoveryConfigMap := os.Getenv(DiscoveryConfigMapEnv)
	if discoveryConfigMap == "" {
		discoveryConfigMap = DefaultDiscoveryConfigMap
	}
	if err := validateName("discovery configmap", discoveryConfigMap); err != nil {
		return nil, err
	}

	return &Config{
		WatchNamespaces:    watchNamespaces,
		DiscoveryNamespace: discoveryNamespace,
		DiscoveryConfigMap: discoveryConfigMap,
	}, nil
}

// ParseWatchNamespaces interprets the WATCH_NAMESPACES value:
// empty -> nil (current namespace), "all" -> ["all"], otherwise the
// comma-separated allow-list with each name validated.
func ParseWatchNamespaces(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		klog.Infof("No %s specified, watching current namespace only", WatchNamespacesEnv)
		return nil, nil
	}
	if strings.EqualFold(value, WatchAllNamespaces) {
		return []string{WatchAllNamespaces}, nil
	}

	namespaces := lo.FilterMap(strings.Split(value, ","), func(s string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(s)
		return trimmed, trimmed != ""
	})
	if len(namespaces) == 0 {
		klog.Infof("Empty %s, watching current namespace only", WatchNamespacesEnv)
		return nil, nil
	}

	for _, namespace := range namespaces {
		if namespace == WatchCurrentNamespace {
			continue
		}
		if err := validateName("watch namespace", namespace); err != nil {
			return nil, err
		}
	}

	return namespaces, nil
}

// CurrentNamespace resolves the operator's own namespace from the downward
// API, falling back to "default" outside a pod.
func CurrentNamespace() string {
	if ns := os.Getenv(PodNamespaceEnv); ns != "" {
		return ns
	}
	return DefaultDiscoveryNamespace
}

// validateName enforces the subset of Kubernetes naming rules the operator
// relies on: non-empty, alphanumeric plus '-', at most 63 characters.
func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%s name too long: %s", kind, name)
	}
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' {
			continue
		}
		return fmt.Errorf("invalid %s name: %s", kind, name)
	}
	return nil
}
