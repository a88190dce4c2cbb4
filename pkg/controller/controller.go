// Package controller wires the openapi-discovery operator together: it
// builds the controller-runtime manager for the configured namespace scope,
// bootstraps the discovery ConfigMap, and runs the service reconciler.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"
	api "k8s.io/kubernetes/pkg/apis/core"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/apidoc-io/openapi-discovery/pkg/config"
	"github.com/apidoc-io/openapi-discovery/pkg/metrics"
	"github.com/apidoc-io/openapi-discovery/pkg/prober"
	"github.com/apidoc-io/openapi-discovery/pkg/store"
)

// Controller is the long-lived operator process
type Controller struct {
	cfg     *config.Config
	manager ctrl.Manager
	store   *store.Store
}

// newScheme registers the core types the operator touches (Services and
// ConfigMaps)
func newScheme() (*runtime.Scheme, error) {
	runtimeScheme := runtime.NewScheme()
	if err := scheme.AddToScheme(runtimeScheme); err != nil {
		return nil, fmt.Errorf("failed to add core scheme: %w", err)
	}
	return runtimeScheme, nil
}

// NewController creates the operator with a controller-runtime manager scoped
// to the configured namespaces.
func NewController(cfg *config.Config, restConfig *rest.Config, metricsAddr string) (*Controller, error) {
	runtimeScheme, err := newScheme()
	if err != nil {
		return nil, err
	}

	watchNamespaces, cacheNamespace := resolveScope(cfg.WatchNamespaces)
	if err := validateScope(watchNamespaces, cacheNamespace); err != nil {
		return nil, err
	}

	options := ctrl.Options{
		Scheme:  runtimeScheme,
		Metrics: metricsserver.Options{BindAddress: metricsAddr},
	}
	if cacheNamespace != "" {
		klog.Infof("Watching single namespace: %s", cacheNamespace)
		options.Cache = cache.Options{
			DefaultNamespaces: map[string]cache.Config{cacheNamespace: {}},
		}
	} else {
		klog.Infof("Watching all namespaces (filter: %v)", watchNamespaces)
	}

	mgr, err := ctrl.NewManager(restConfig, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	// The store reads and writes straight against the API server: the
	// discovery ConfigMap may live outside the watched namespace scope, and
	// optimistic writes need the freshest resourceVersion, not a cached one.
	directClient, err := client.New(restConfig, client.Options{Scheme: runtimeScheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create direct client: %w", err)
	}

	m := metrics.New(ctrlmetrics.Registry)
	st := store.NewStore(directClient, cfg, m)

	reconciler := NewServiceReconciler(mgr.GetClient(), st, prober.NewProber(), m, watchNamespaces)
	if err := reconciler.SetupWithManager(mgr); err != nil {
		return nil, fmt.Errorf("failed to set up service reconciler: %w", err)
	}

	return &Controller{
		cfg:     cfg,
		manager: mgr,
		store:   st,
	}, nil
}

// resolveScope maps the configured namespace scope onto manager options.
// A single concrete namespace (including the "current" fallback) restricts
// the cache; an explicit multi-namespace list watches everything and filters
// per reconcile; "all" watches everything unfiltered.
func resolveScope(watchNamespaces []string) (filter []string, cacheNamespace string) {
	resolved := make([]string, 0, len(watchNamespaces))
	for _, namespace := range watchNamespaces {
		if namespace == config.WatchCurrentNamespace {
			namespace = config.CurrentNamespace()
		}
		resolved = append(resolved, namespace)
	}

	switch {
	case len(resolved) == 0:
		return nil, config.CurrentNamespace()
	case len(resolved) == 1 && resolved[0] == config.WatchAllNamespaces:
		return nil, ""
	case len(resolved) == 1:
		return nil, resolved[0]
	default:
		return resolved, ""
	}
}

// validateScope rejects resolved scopes that target kube-system, including an
// empty or "current" scope running in a kube-system pod.
func validateScope(filter []string, cacheNamespace string) error {
	if cacheNamespace == api.NamespaceSystem || lo.Contains(filter, api.NamespaceSystem) {
		return errors.New("cannot watch 'kube-system' namespace; it is always excluded")
	}
	return nil
}

// Run bootstraps the discovery document and drives the manager until ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) error {
	klog.Info("Starting openapi-discovery controller")

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.manager.Start(groupCtx)
	})

	if !c.manager.GetCache().WaitForCacheSync(groupCtx) {
		// A failed Start cancels groupCtx; its error beats the generic sync
		// failure.
		if err := g.Wait(); err != nil {
			return fmt.Errorf("failed to start manager: %w", err)
		}
		return fmt.Errorf("failed to sync manager cache")
	}
	klog.Info("Manager cache synced")

	if err := c.store.Initialize(groupCtx); err != nil {
		return fmt.Errorf("failed to initialize discovery ConfigMap: %w", err)
	}

	klog.Info("Controller started, watching for services with API documentation annotations")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	klog.Info("Shutting down openapi-discovery controller")
	return nil
}
