// Package store holds the most recent accepted datapoint per
// (key, data kind). The store is monotone: an upsert only replaces the held
// event when the incoming event timestamp is strictly newer, which guards
// against clock skew and late-arriving older data.
package store

import (
	"sync"
	"time"

	"github.com/kilianp07/gridfeed/core/model"
)

type entryKey struct {
	key  string
	kind model.Kind
}

// LatestStore is a thread-safe latest-event store. Writes serialize per
// store, reads take a shared lock.
type LatestStore struct {
	mu   sync.RWMutex
	data map[entryKey]model.Event
}

// New creates an empty LatestStore.
func New() *LatestStore {
	return &LatestStore{data: make(map[entryKey]model.Event)}
}

// Upsert offers an event. It reports whether the event was stored: false
// means an event with an equal or newer timestamp is already held.
func (s *LatestStore) Upsert(ev model.Event) bool {
	ek := entryKey{key: ev.Key(), kind: ev.EventKind()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.data[ek]; ok && !ev.At().After(cur.At()) {
		return false
	}
	s.data[ek] = ev
	return true
}

// Latest returns the held event for (key, kind).
func (s *LatestStore) Latest(key string, kind model.Kind) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.data[entryKey{key: key, kind: kind}]
	return ev, ok
}

// LatestByKind returns every held event of the given kind, keyed by zone or
// exchange key.
func (s *LatestStore) LatestByKind(kind model.Kind) map[string]model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Event)
	for ek, ev := range s.data {
		if ek.kind == kind {
			out[ek.key] = ev
		}
	}
	return out
}

// Snapshot returns the latest event per requested zone for each requested
// kind. Zones with no held event for a kind are simply absent.
func (s *LatestStore) Snapshot(zones []model.ZoneKey, kinds []model.Kind) map[model.ZoneKey]map[model.Kind]model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ZoneKey]map[model.Kind]model.Event)
	for _, z := range zones {
		for _, k := range kinds {
			ev, ok := s.data[entryKey{key: string(z), kind: k}]
			if !ok {
				continue
			}
			if out[z] == nil {
				out[z] = make(map[model.Kind]model.Event)
			}
			out[z][k] = ev
		}
	}
	return out
}

// FreshestAge returns the smallest absolute distance between now and any
// stored event timestamp. Future-dated entries (day-ahead prices, forecasts)
// count by how far ahead they sit, so they cannot mask dead measured feeds.
// The second return is false when the store is empty.
func (s *LatestStore) FreshestAge(now time.Time) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best time.Duration
	found := false
	for _, ev := range s.data {
		d := now.Sub(ev.At())
		if d < 0 {
			d = -d
		}
		if !found || d < best {
			best = d
			found = true
		}
	}
	return best, found
}

// Len returns the number of held entries.
func (s *LatestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
