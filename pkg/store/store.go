// Package store persists the discovery document in a ConfigMap. All writes
// go through a read-merge-write cycle guarded by the ConfigMap's
// resourceVersion, so any number of concurrent reconcilers converge without
// in-process locking.
package store

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/apidoc-io/openapi-discovery/pkg/apis/discovery"
	"github.com/apidoc-io/openapi-discovery/pkg/config"
	"github.com/apidoc-io/openapi-discovery/pkg/metrics"
)

const (
	defaultBaseDelay   = 100 * time.Millisecond
	defaultMaxAttempts = 5
)

// MutateFunc transforms the entry set read from the document into the entry
// set to persist. It must be side-effect free: it may run several times when
// writes race.
type MutateFunc func(entries []discovery.Entry) []discovery.Entry

// Store reads and conditionally writes the discovery ConfigMap
type Store struct {
	kubeClient client.Client
	namespace  string
	name       string
	metrics    *metrics.Metrics

	baseDelay   time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewStore creates a Store for the configured discovery ConfigMap. The
// metrics argument may be nil.
func NewStore(kubeClient client.Client, cfg *config.Config, m *metrics.Metrics) *Store {
	return &Store{
		kubeClient:  kubeClient,
		namespace:   cfg.DiscoveryNamespace,
		name:        cfg.DiscoveryConfigMap,
		metrics:     m,
		baseDelay:   defaultBaseDelay,
		maxAttempts: defaultMaxAttempts,
		sleep:       sleep,
	}
}

// Initialize creates the empty discovery document at startup if it does not
// exist yet, so the viewer always has something to mount.
func (s *Store) Initialize(ctx context.Context) error {
	existing := &corev1.ConfigMap{}
	err := s.kubeClient.Get(ctx, client.ObjectKey{Namespace: s.namespace, Name: s.name}, existing)
	if err == nil {
		klog.Infof("Discovery ConfigMap %s/%s already exists", s.namespace, s.name)
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to check discovery ConfigMap %s/%s: %w", s.namespace, s.name, err)
	}

	configMap, err := s.buildConfigMap(nil)
	if err != nil {
		return err
	}
	if err := s.kubeClient.Create(ctx, configMap); err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create discovery ConfigMap %s/%s: %w", s.namespace, s.name, err)
	}
	klog.Infof("Created discovery ConfigMap %s/%s", s.namespace, s.name)
	return nil
}

// Apply runs one read-merge-write cycle with bounded exponential backoff on
// write conflicts. Conflicts beyond the attempt budget and all non-conflict
// failures surface to the caller.
func (s *Store) Apply(ctx context.Context, mutate MutateFunc) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.tryApply(ctx, mutate)
		if err == nil {
			return nil
		}
		if !isWriteConflict(err) {
			return err
		}

		lastErr = err
		if s.metrics != nil {
			s.metrics.SyncConflicts.Inc()
		}
		if attempt == s.maxAttempts {
			break
		}

		delay := s.baseDelay << (attempt - 1)
		klog.Warningf("Conflict writing discovery ConfigMap %s/%s (attempt %d/%d), retrying in %s",
			s.namespace, s.name, attempt, s.maxAttempts, delay)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("giving up on discovery ConfigMap %s/%s after %d conflicting writes: %w",
		s.namespace, s.name, s.maxAttempts, lastErr)
}

// tryApply performs a single conditional write: create when the ConfigMap is
// absent, otherwise update carrying the resourceVersion just read.
func (s *Store) tryApply(ctx context.Context, mutate MutateFunc) error {
	existing := &corev1.ConfigMap{}
	err := s.kubeClient.Get(ctx, client.ObjectKey{Namespace: s.namespace, Name: s.name}, existing)
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to get discovery ConfigMap %s/%s: %w", s.namespace, s.name, err)
		}

		configMap, err := s.buildConfigMap(mutate(nil))
		if err != nil {
			return err
		}
		if err := s.kubeClient.Create(ctx, configMap); err != nil {
			return fmt.Errorf("failed to create discovery ConfigMap %s/%s: %w", s.namespace, s.name, err)
		}
		return nil
	}

	doc, err := discovery.DecodeDocument([]byte(existing.Data[discovery.DataKey]))
	if err != nil {
		// A corrupt document is rebuilt from scratch rather than wedging
		// every future write.
		klog.Errorf("Discarding unreadable discovery document in %s/%s: %v", s.namespace, s.name, err)
		doc = discovery.Document{}
	}

	entries := mutate(doc.APIs)
	data, err := discovery.EncodeDocument(discovery.Document{APIs: entries, LastUpdated: time.Now().UTC()})
	if err != nil {
		return err
	}

	if existing.Data == nil {
		existing.Data = map[string]string{}
	}
	existing.Data[discovery.DataKey] = string(data)
	if existing.Labels == nil {
		existing.Labels = map[string]string{}
	}
	for key, value := range discoveryLabels() {
		existing.Labels[key] = value
	}

	if err := s.kubeClient.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update discovery ConfigMap %s/%s: %w", s.namespace, s.name, err)
	}
	if s.metrics != nil {
		s.metrics.DocumentEntries.Set(float64(len(entries)))
	}
	klog.V(4).Infof("Updated discovery ConfigMap %s/%s with %d entries", s.namespace, s.name, len(entries))
	return nil
}

// Load reads the current document. A missing ConfigMap or key reads as an
// empty document.
func (s *Store) Load(ctx context.Context) (discovery.Document, error) {
	existing := &corev1.ConfigMap{}
	err := s.kubeClient.Get(ctx, client.ObjectKey{Namespace: s.namespace, Name: s.name}, existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return discovery.Document{}, nil
		}
		return discovery.Document{}, fmt.Errorf("failed to get discovery ConfigMap %s/%s: %w", s.namespace, s.name, err)
	}
	return discovery.DecodeDocument([]byte(existing.Data[discovery.DataKey]))
}

func (s *Store) buildConfigMap(entries []discovery.Entry) (*corev1.ConfigMap, error) {
	data, err := discovery.EncodeDocument(discovery.Document{APIs: entries, LastUpdated: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.name,
			Namespace: s.namespace,
			Labels:    discoveryLabels(),
		},
		Data: map[string]string{
			discovery.DataKey: string(data),
		},
	}, nil
}

func discoveryLabels() map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":      "openapi-discovery",
		"app.kubernetes.io/component": "discovery",
	}
}

// isWriteConflict reports whether err is a race with another writer: a stale
// resourceVersion on update, or a concurrent create of the same ConfigMap.
func isWriteConflict(err error) bool {
	return apierrors.IsConflict(err) || apierrors.IsAlreadyExists(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
