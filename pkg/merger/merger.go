// Package merger deduplicates discovery entries. The persisted document may
// momentarily carry duplicates written by older operator versions or racing
// writers; merging collapses them to one entry per service, last write wins.
package merger

import (
	"github.com/samber/lo"

	"github.com/apidoc-io/openapi-discovery/pkg/apis/discovery"
)

// Merge collapses entries to one per (namespace, service) key, keeping the
// greatest LastUpdated among duplicates, then inserts the incoming entry
// unconditionally. The incoming entry was just produced, so it always
// replaces whatever its key held before.
func Merge(entries []discovery.Entry, incoming discovery.Entry) []discovery.Entry {
	unique := dedupe(entries)
	unique[incoming.Key()] = incoming
	return lo.Values(unique)
}

// Remove strips the entry matching key, if present.
func Remove(entries []discovery.Entry, key discovery.EntryKey) []discovery.Entry {
	unique := dedupe(entries)
	delete(unique, key)
	return lo.Values(unique)
}

func dedupe(entries []discovery.Entry) map[discovery.EntryKey]discovery.Entry {
	unique := make(map[discovery.EntryKey]discovery.Entry, len(entries))
	for _, entry := range entries {
		existing, ok := unique[entry.Key()]
		if !ok || !entry.LastUpdated.Before(existing.LastUpdated) {
			unique[entry.Key()] = entry
		}
	}
	return unique
}
