// Package discovery defines the persisted catalogue model shared by the
// operator and the documentation server: the discovery document, its entries,
// and helpers for spec content.
package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sigs.k8s.io/yaml"
)

// DataKey is the ConfigMap key holding the serialized discovery document
const DataKey = "discovery.json"

// Entry is one documented API
type Entry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace"`
	ServiceName string    `json:"service_name"`
	URL         string    `json:"url"`
	Description *string   `json:"description"`
	LastUpdated time.Time `json:"last_updated"`
	Available   bool      `json:"available"`
	// Spec is the raw specification content, JSON or YAML
	Spec string `json:"spec"`
}

// Document is the persisted catalogue of documented APIs
type Document struct {
	APIs        []Entry   `json:"apis"`
	LastUpdated time.Time `json:"last_updated"`
}

// EntryKey identifies an entry by its owning service. Merge and removal key
// on this pair rather than the concatenated ID, so names containing '-'
// cannot collide.
type EntryKey struct {
	Namespace string
	Service   string
}

// Key returns the identity of the entry's owning service
func (e Entry) Key() EntryKey {
	return EntryKey{Namespace: e.Namespace, Service: e.ServiceName}
}

// ID returns the deterministic string form used in the persisted document
func (k EntryKey) ID() string {
	return k.Namespace + "-" + k.Service
}

// DecodeDocument parses a serialized discovery document. Empty input yields
// an empty document.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	return doc, nil
}

// EncodeDocument serializes the document in the indented form the viewer and
// humans read out of the ConfigMap.
func EncodeDocument(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode discovery document: %w", err)
	}
	return data, nil
}

// PlaceholderSpec builds the synthetic minimal OpenAPI document substituted
// when a live spec cannot be fetched.
func PlaceholderSpec(name, description string) string {
	spec := map[string]any{
		"openapi": "3.0.0",
		"info": map[string]any{
			"title":       name,
			"version":     "1.0.0",
			"description": description,
		},
		"paths": map[string]any{},
	}
	data, _ := json.Marshal(spec)
	return string(data)
}

// NormalizeSpec converts spec content to JSON. JSON input passes through
// validated; anything else is treated as YAML.
func NormalizeSpec(spec string) (json.RawMessage, error) {
	if strings.HasPrefix(strings.TrimSpace(spec), "{") {
		var value json.RawMessage
		if err := json.Unmarshal([]byte(spec), &value); err != nil {
			return nil, fmt.Errorf("invalid JSON spec: %w", err)
		}
		return value, nil
	}
	data, err := yaml.YAMLToJSON([]byte(spec))
	if err != nil {
		return nil, fmt.Errorf("invalid YAML spec: %w", err)
	}
	return data, nil
}
