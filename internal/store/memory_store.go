// Package store contains the in-memory replica of fig family data.
package store

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/fcmodel"
)

// MemoryStore is the local replica: a two-level map of namespace to key to family.
//
// Implementation notes:
//
// We deliberately do not use a defer pattern to manage the lock in the hot-path methods.
// Get may be called with very high frequency, and defer adds a small but consistent
// overhead. To make it safe to hold the lock without deferring the unlock, each method
// has a single return point and performs no operation that could panic while the lock
// is held.
type MemoryStore struct {
	families map[string]map[string]fcmodel.FigFamily
	sync.RWMutex
	loggers ldlog.Loggers
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(loggers ldlog.Loggers) *MemoryStore {
	return &MemoryStore{
		families: make(map[string]map[string]fcmodel.FigFamily),
		loggers:  loggers,
	}
}

// Upsert adds or replaces the family for its (namespace, key). The previous entry, if
// any, is replaced wholesale; readers see either the old family or the new one, never a
// mixture. The inner namespace map is created lazily on first write.
func (s *MemoryStore) Upsert(family fcmodel.FigFamily) {
	s.Lock()

	nsMap, ok := s.families[family.Namespace]
	if !ok {
		nsMap = make(map[string]fcmodel.FigFamily)
		s.families[family.Namespace] = nsMap
	}
	nsMap[family.Key] = family

	s.Unlock()
}

// Get returns the current family for (namespace, key), if present.
func (s *MemoryStore) Get(namespace, key string) (fcmodel.FigFamily, bool) {
	s.RLock()

	var family fcmodel.FigFamily
	var ok bool
	if nsMap, found := s.families[namespace]; found {
		family, ok = nsMap[key]
	}

	s.RUnlock()

	if !ok && s.loggers.IsDebugEnabled() {
		s.loggers.Debugf("Key %s not found in namespace %s", key, namespace)
	}
	return family, ok
}

// GetAll returns a point-in-time snapshot of the whole store as namespace -> key ->
// family. The snapshot is a shallow copy and is safe to iterate while writers proceed.
func (s *MemoryStore) GetAll() map[string]map[string]fcmodel.FigFamily {
	s.RLock()

	out := make(map[string]map[string]fcmodel.FigFamily, len(s.families))
	for ns, nsMap := range s.families {
		inner := make(map[string]fcmodel.FigFamily, len(nsMap))
		for key, family := range nsMap {
			inner[key] = family
		}
		out[ns] = inner
	}

	s.RUnlock()

	return out
}

// Clear empties the store.
func (s *MemoryStore) Clear() {
	s.Lock()
	s.families = make(map[string]map[string]fcmodel.FigFamily)
	s.Unlock()
}
