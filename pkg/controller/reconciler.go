package controller

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"

	"github.com/apidoc-io/openapi-discovery/pkg/annotations"
	"github.com/apidoc-io/openapi-discovery/pkg/apis/discovery"
	"github.com/apidoc-io/openapi-discovery/pkg/config"
	"github.com/apidoc-io/openapi-discovery/pkg/merger"
	"github.com/apidoc-io/openapi-discovery/pkg/metrics"
	"github.com/apidoc-io/openapi-discovery/pkg/prober"
	"github.com/apidoc-io/openapi-discovery/pkg/store"
)

// maxConcurrentReconciles bounds the worker pool. The workqueue already
// serializes reconciles sharing one service identity.
const maxConcurrentReconciles = 4

// ServiceReconciler converges the discovery document with the documentation
// intent annotated on Services.
type ServiceReconciler struct {
	kubeClient client.Client
	store      *store.Store
	prober     *prober.Prober
	metrics    *metrics.Metrics

	// watchNamespaces is the resolved allow-list; nil means no filtering
	// (the cache scope already constrains what we see)
	watchNamespaces sets.Set[string]
}

// NewServiceReconciler creates a reconciler. watchNamespaces carries the
// explicit allow-list when the manager watches the whole cluster but only a
// subset of namespaces is wanted; nil disables in-reconciler filtering.
func NewServiceReconciler(kubeClient client.Client, st *store.Store, p *prober.Prober, m *metrics.Metrics, watchNamespaces []string) *ServiceReconciler {
	r := &ServiceReconciler{
		kubeClient: kubeClient,
		store:      st,
		prober:     p,
		metrics:    m,
	}
	if len(watchNamespaces) > 0 {
		r.watchNamespaces = sets.New(watchNamespaces...)
	}
	return r
}

// SetupWithManager registers the reconciler for Service events
func (r *ServiceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Service{}).
		WithOptions(controller.Options{MaxConcurrentReconciles: maxConcurrentReconciles}).
		Complete(r)
}

// Reconcile runs the per-service pipeline: filter, decode annotations, probe,
// build the entry and commit it. Probe and fetch failures are absorbed into
// the entry state; only document-write failures shorten the requeue.
func (r *ServiceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	steady := ctrl.Result{RequeueAfter: config.RequeueInterval}

	if r.watchNamespaces != nil && !r.watchNamespaces.Has(req.Namespace) {
		klog.V(4).Infof("Skipping service %s/%s (namespace not in watch list)", req.Namespace, req.Name)
		r.count(metrics.ResultSkipped)
		return steady, nil
	}

	var service corev1.Service
	if err := r.kubeClient.Get(ctx, req.NamespacedName, &service); err != nil {
		if apierrors.IsNotFound(err) {
			// The service is gone from the cluster: drop its entry.
			return r.removeEntry(ctx, discovery.EntryKey{Namespace: req.Namespace, Service: req.Name})
		}
		klog.Errorf("Failed to get service %s/%s: %v", req.Namespace, req.Name, err)
		return r.errorResult()
	}

	settings := annotations.Decode(&service)
	if !settings.Enabled {
		klog.V(4).Infof("Service %s/%s does not have API documentation enabled", req.Namespace, req.Name)
		return r.removeEntry(ctx, discovery.EntryKey{Namespace: req.Namespace, Service: req.Name})
	}

	klog.Infof("Reconciling service %s/%s", req.Namespace, req.Name)

	url := documentationURL(&service, settings.Path)
	available := r.prober.Probe(ctx, url)
	if r.metrics != nil {
		if available {
			r.metrics.ProbeResults.WithLabelValues("available").Inc()
		} else {
			r.metrics.ProbeResults.WithLabelValues("unavailable").Inc()
		}
	}

	spec := discovery.PlaceholderSpec(settings.Name, "API documentation not available")
	if available {
		fetched, err := r.prober.FetchSpec(ctx, url)
		if err != nil {
			klog.Warningf("Failed to fetch spec for service %s/%s: %v", req.Namespace, req.Name, err)
		} else {
			spec = fetched
		}
	}

	entry := discovery.Entry{
		ID:          discovery.EntryKey{Namespace: req.Namespace, Service: req.Name}.ID(),
		Name:        settings.Name,
		Namespace:   req.Namespace,
		ServiceName: req.Name,
		URL:         url,
		Description: settings.Description,
		LastUpdated: time.Now().UTC(),
		Available:   available,
		Spec:        spec,
	}

	if err := r.store.Apply(ctx, func(entries []discovery.Entry) []discovery.Entry {
		return merger.Merge(entries, entry)
	}); err != nil {
		klog.Errorf("Failed to publish entry for service %s/%s: %v", req.Namespace, req.Name, err)
		return r.errorResult()
	}

	klog.Infof("Reconciled service %s/%s (available: %t)", req.Namespace, req.Name, available)
	r.count(metrics.ResultSuccess)
	return steady, nil
}

// removeEntry drops the entry for key from the discovery document. Used both
// for services deleted outright and for services whose enable annotation was
// removed.
func (r *ServiceReconciler) removeEntry(ctx context.Context, key discovery.EntryKey) (ctrl.Result, error) {
	if err := r.store.Apply(ctx, func(entries []discovery.Entry) []discovery.Entry {
		return merger.Remove(entries, key)
	}); err != nil {
		klog.Errorf("Failed to remove entry %s from discovery document: %v", key.ID(), err)
		return r.errorResult()
	}
	klog.V(4).Infof("Removed entry %s from discovery document (if present)", key.ID())
	r.count(metrics.ResultRemoved)
	return ctrl.Result{RequeueAfter: config.RequeueInterval}, nil
}

// errorResult requeues well before the steady-state interval so transient
// failures recover quickly. The error is not returned to the workqueue: the
// bounded requeue is the retry policy.
func (r *ServiceReconciler) errorResult() (ctrl.Result, error) {
	r.count(metrics.ResultError)
	return ctrl.Result{RequeueAfter: config.ErrorRequeueInterval}, nil
}

func (r *ServiceReconciler) count(result string) {
	if r.metrics != nil {
		r.metrics.Reconciles.WithLabelValues(result).Inc()
	}
}

// documentationURL builds the in-cluster documentation endpoint from the
// service's first declared port, defaulting to 8080.
func documentationURL(service *corev1.Service, path string) string {
	port := int32(config.DefaultServicePort)
	if len(service.Spec.Ports) > 0 {
		port = service.Spec.Ports[0].Port
	}
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d%s", service.Name, service.Namespace, port, path)
}
