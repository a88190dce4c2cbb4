package controller

import (
	"context"
	"errors"
	"strings"
	"testing"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"

	"github.com/apidoc-io/openapi-discovery/pkg/config"
)

type failingManager struct {
	ctrl.Manager
	startErr error
}

func (m *failingManager) Start(ctx context.Context) error { return m.startErr }

func (m *failingManager) GetCache() cache.Cache { return unsyncableCache{} }

type unsyncableCache struct {
	cache.Cache
}

func (unsyncableCache) WaitForCacheSync(ctx context.Context) bool {
	<-ctx.Done()
	return false
}

func TestRun_SurfacesManagerStartError(t *testing.T) {
	startErr := errors.New("metrics listener: address already in use")
	c := &Controller{
		cfg:     &config.Config{},
		manager: &failingManager{startErr: startErr},
	}

	err := c.Run(context.Background())
	if err == nil {
		t.Fatal("Expected Run to fail when the manager cannot start")
	}
	if !strings.Contains(err.Error(), "address already in use") {
		t.Errorf("Run error hides the manager start failure: %v", err)
	}
}

func TestValidateScope(t *testing.T) {
	tests := []struct {
		name         string
		watch        []string
		podNamespace string
		wantErr      bool
	}{
		{name: "explicit kube-system rejected", watch: []string{"kube-system"}, podNamespace: "platform", wantErr: true},
		{name: "kube-system in a list rejected", watch: []string{"shop", "kube-system"}, podNamespace: "platform", wantErr: true},
		{name: "empty scope in a kube-system pod rejected", watch: nil, podNamespace: "kube-system", wantErr: true},
		{name: "current scope in a kube-system pod rejected", watch: []string{"current"}, podNamespace: "kube-system", wantErr: true},
		{name: "regular scope allowed", watch: []string{"shop"}, podNamespace: "kube-system"},
		{name: "all scope allowed", watch: []string{"all"}, podNamespace: "platform"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.PodNamespaceEnv, tt.podNamespace)

			filter, cacheNamespace := resolveScope(tt.watch)
			err := validateScope(filter, cacheNamespace)
			if tt.wantErr && err == nil {
				t.Errorf("Expected scope %v (pod namespace %s) to be rejected", tt.watch, tt.podNamespace)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error for scope %v: %v", tt.watch, err)
			}
		})
	}
}
