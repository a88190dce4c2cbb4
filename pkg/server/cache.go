package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/apidoc-io/openapi-discovery/pkg/apis/discovery"
)

// DefaultRefreshInterval is how often the catalogue is re-read from disk
const DefaultRefreshInterval = 30 * time.Second

// Cache mirrors the discovery document into memory and materializes each
// spec as a JSON file under the cache directory. The discovery document is
// the single source of truth; the cache only ever refreshes from it.
type Cache struct {
	discoveryPath string
	cacheDir      string

	mu   sync.RWMutex
	apis []discovery.Entry
}

// NewCache creates a cache reading the document from discoveryPath and
// writing spec files under cacheDir.
func NewCache(discoveryPath, cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}
	return &Cache{discoveryPath: discoveryPath, cacheDir: cacheDir}, nil
}

// Run refreshes the cache immediately and then on every interval tick until
// ctx is cancelled. Refresh failures are logged; the previous snapshot keeps
// serving.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if err := c.Refresh(); err != nil {
		klog.Errorf("Failed to refresh API cache: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(); err != nil {
				klog.Errorf("Failed to refresh API cache: %v", err)
			}
		}
	}
}

// Refresh re-reads the discovery document and rewrites the spec files
func (c *Cache) Refresh() error {
	data, err := os.ReadFile(c.discoveryPath)
	if err != nil {
		return fmt.Errorf("failed to read discovery document %s: %w", c.discoveryPath, err)
	}

	doc, err := discovery.DecodeDocument(data)
	if err != nil {
		return err
	}

	for _, entry := range doc.APIs {
		if err := c.writeSpecFile(entry); err != nil {
			klog.Warningf("Failed to cache spec for API %s: %v", entry.ID, err)
		}
	}

	c.mu.Lock()
	c.apis = doc.APIs
	c.mu.Unlock()

	klog.V(4).Infof("Refreshed API cache with %d entries", len(doc.APIs))
	return nil
}

// APIs returns the current catalogue snapshot
func (c *Cache) APIs() []discovery.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	apis := make([]discovery.Entry, len(c.apis))
	copy(apis, c.apis)
	return apis
}

// Lookup finds an entry by its id
func (c *Cache) Lookup(id string) (discovery.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.apis {
		if entry.ID == id {
			return entry, true
		}
	}
	return discovery.Entry{}, false
}

// SpecPath returns the cached spec file for id
func (c *Cache) SpecPath(id string) string {
	return filepath.Join(c.cacheDir, sanitizeFilename(id)+".json")
}

// writeSpecFile normalizes the entry's spec to JSON and writes it plus a
// small metadata sidecar next to it.
func (c *Cache) writeSpecFile(entry discovery.Entry) error {
	spec, err := discovery.NormalizeSpec(entry.Spec)
	if err != nil {
		// Unparseable specs fall back to the placeholder so the viewer still
		// renders something for the entry.
		klog.Warningf("Spec for API %s does not parse, substituting placeholder: %v", entry.ID, err)
		spec = []byte(discovery.PlaceholderSpec(entry.Name, "API documentation not available"))
	}

	if err := os.WriteFile(c.SpecPath(entry.ID), spec, 0o644); err != nil {
		return fmt.Errorf("failed to write spec file: %w", err)
	}

	meta := fmt.Sprintf("{\"id\": %q, \"name\": %q, \"available\": %t, \"last_updated\": %q}\n",
		entry.ID, entry.Name, entry.Available, entry.LastUpdated.Format(time.RFC3339))
	metaPath := filepath.Join(c.cacheDir, sanitizeFilename(entry.ID)+".meta.json")
	if err := os.WriteFile(metaPath, []byte(meta), 0o644); err != nil {
		return fmt.Errorf("failed to write spec metadata: %w", err)
	}
	return nil
}

// sanitizeFilename keeps cache filenames inside [a-zA-Z0-9-_]
func sanitizeFilename(name string) string {
	out := []rune(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
