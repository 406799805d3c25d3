package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-cache/internal/common"
	"github.com/i474232898/weather-cache/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.RecordStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: normalized city, value: the single live snapshot
	data map[string]weather.WeatherSnapshot

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. A nil clock falls back to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		data: make(map[string]weather.WeatherSnapshot),
		now:  now,
	}
}

func (s *MemoryStore) FindByCity(_ context.Context, city string) (weather.WeatherSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[common.NormalizeCity(city)]
	if !ok {
		return weather.WeatherSnapshot{}, weather.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *MemoryStore) FindRecentByCity(_ context.Context, city string, maxAgeMinutes int) (weather.WeatherSnapshot, error) {
	cutoff := weather.RecencyCutoff(s.now(), maxAgeMinutes)

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[common.NormalizeCity(city)]
	if !ok || !snap.LastUpdated.After(cutoff) {
		return weather.WeatherSnapshot{}, weather.ErrSnapshotNotFound
	}
	return snap, nil
}

// Upsert replaces the snapshot for the city, keeping the first CreatedAt.
func (s *MemoryStore) Upsert(_ context.Context, snap weather.WeatherSnapshot) (weather.WeatherSnapshot, error) {
	key := common.NormalizeCity(snap.City)
	snap.LastUpdated = snap.LastUpdated.UTC()
	snap.CreatedAt = snap.CreatedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.data[key]; ok {
		snap.CreatedAt = cur.CreatedAt
	} else if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now().UTC()
	}

	s.data[key] = snap
	return snap, nil
}

func (s *MemoryStore) DeleteByCity(_ context.Context, city string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, common.NormalizeCity(city))
	return nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, snap := range s.data {
		if snap.CreatedAt.Before(cutoff) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountAll(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

func (s *MemoryStore) CountFreshSince(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, snap := range s.data {
		if !snap.LastUpdated.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// List returns all snapshots ordered by normalized city.
func (s *MemoryStore) List(_ context.Context) ([]weather.WeatherSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]weather.WeatherSnapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.data[k])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ weather.RecordStore = (*MemoryStore)(nil)
