package testutils

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/i474232898/weather-cache/internal/weather"
)

type MockUpstream struct {
	mock.Mock
}

func (m *MockUpstream) Name() string {
	return "mock"
}

func (m *MockUpstream) FetchCurrent(ctx context.Context, city string) (weather.WeatherAttributes, error) {
	args := m.Called(ctx, city)
	return args.Get(0).(weather.WeatherAttributes), args.Error(1)
}

// MockStore is a testify mock of weather.RecordStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindByCity(ctx context.Context, city string) (weather.WeatherSnapshot, error) {
	args := m.Called(ctx, city)
	return args.Get(0).(weather.WeatherSnapshot), args.Error(1)
}

func (m *MockStore) FindRecentByCity(ctx context.Context, city string, maxAgeMinutes int) (weather.WeatherSnapshot, error) {
	args := m.Called(ctx, city, maxAgeMinutes)
	return args.Get(0).(weather.WeatherSnapshot), args.Error(1)
}

func (m *MockStore) Upsert(ctx context.Context, s weather.WeatherSnapshot) (weather.WeatherSnapshot, error) {
	args := m.Called(ctx, s)
	if fn, ok := args.Get(0).(func(context.Context, weather.WeatherSnapshot) weather.WeatherSnapshot); ok {
		return fn(ctx, s), args.Error(1)
	}
	return args.Get(0).(weather.WeatherSnapshot), args.Error(1)
}

func (m *MockStore) DeleteByCity(ctx context.Context, city string) error {
	args := m.Called(ctx, city)
	return args.Error(0)
}

func (m *MockStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) CountAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) CountFreshSince(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]weather.WeatherSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]weather.WeatherSnapshot), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// SpyStore wraps a real RecordStore and counts calls per method, so tests
// can run against real semantics and still assert which queries happened.
type SpyStore struct {
	weather.RecordStore
	Calls map[string]int
}

func NewSpyStore(inner weather.RecordStore) *SpyStore {
	return &SpyStore{RecordStore: inner, Calls: make(map[string]int)}
}

func (s *SpyStore) FindByCity(ctx context.Context, city string) (weather.WeatherSnapshot, error) {
	s.Calls["FindByCity"]++
	return s.RecordStore.FindByCity(ctx, city)
}

func (s *SpyStore) FindRecentByCity(ctx context.Context, city string, maxAgeMinutes int) (weather.WeatherSnapshot, error) {
	s.Calls["FindRecentByCity"]++
	return s.RecordStore.FindRecentByCity(ctx, city, maxAgeMinutes)
}

func (s *SpyStore) Upsert(ctx context.Context, snap weather.WeatherSnapshot) (weather.WeatherSnapshot, error) {
	s.Calls["Upsert"]++
	return s.RecordStore.Upsert(ctx, snap)
}
