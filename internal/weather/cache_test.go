package weather_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/store"
	"github.com/i474232898/weather-cache/internal/testutils"
	"github.com/i474232898/weather-cache/internal/weather"
)

var testNow = time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

// clock is a settable test clock.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func parisAttrs() weather.WeatherAttributes {
	return weather.WeatherAttributes{
		City:        "Paris",
		Country:     "France",
		Temperature: 18.0,
		Condition:   "Sunny",
		Humidity:    45,
		WindSpeed:   8.2,
		LastUpdated: "2025-06-16 11:45",
		LocalTime:   "2025-06-16 14:00",
		Timezone:    "Europe/Paris",
		Icon:        "//cdn.weatherapi.com/weather/64x64/day/113.png",
	}
}

func TestSaveFromFetchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: testNow}
	st := store.NewMemoryStore(clk.Now)
	cm := weather.NewCacheManager(st, clk.Now, logger.Discard())

	first, err := cm.SaveFromFetch(ctx, parisAttrs())
	require.NoError(t, err)
	second, err := cm.SaveFromFetch(ctx, parisAttrs())
	require.NoError(t, err)

	assert.Equal(t, first, second)

	n, err := st.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveFromFetchKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: testNow}
	st := store.NewMemoryStore(clk.Now)
	cm := weather.NewCacheManager(st, clk.Now, logger.Discard())

	_, err := cm.SaveFromFetch(ctx, parisAttrs())
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	updated := parisAttrs()
	updated.Temperature = 21.5
	updated.LastUpdated = "2025-06-16 13:45"

	snap, err := cm.SaveFromFetch(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, testNow, snap.CreatedAt)
	assert.Equal(t, testNow.Add(2*time.Hour), snap.LastUpdated)
	assert.Equal(t, 21.5, snap.Temperature)
	assert.Equal(t, "2025-06-16 13:45", snap.APILastUpdated)

	n, err := st.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveFromFetchRejectsIncompleteAttributes(t *testing.T) {
	st := store.NewMemoryStore(nil)
	cm := weather.NewCacheManager(st, nil, logger.Discard())

	attrs := parisAttrs()
	attrs.Country = ""

	_, err := cm.SaveFromFetch(context.Background(), attrs)
	require.ErrorIs(t, err, weather.ErrInvalidSnapshot)

	_, err = st.FindByCity(context.Background(), "Paris")
	assert.ErrorIs(t, err, weather.ErrSnapshotNotFound)
}

func TestSaveFromFetchLookupFailure(t *testing.T) {
	ms := new(testutils.MockStore)
	boom := errors.New("disk I/O error")
	ms.On("FindByCity", mock.Anything, "Paris").Return(weather.WeatherSnapshot{}, boom)

	cm := weather.NewCacheManager(ms, nil, logger.Discard())
	_, err := cm.SaveFromFetch(context.Background(), parisAttrs())

	assert.ErrorIs(t, err, boom)
	ms.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestClearOlderThan(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: testNow}
	st := store.NewMemoryStore(clk.Now)
	cm := weather.NewCacheManager(st, clk.Now, logger.Discard())

	seed := func(city string, createdAgo time.Duration) {
		_, err := st.Upsert(ctx, weather.WeatherSnapshot{
			City:           city,
			Country:        "X",
			Condition:      "Clear",
			LastUpdated:    testNow.Add(-createdAgo),
			CreatedAt:      testNow.Add(-createdAgo),
			APILastUpdated: "2025-06-01 00:00",
		})
		require.NoError(t, err)
	}
	seed("Oslo", 10*24*time.Hour)
	seed("Rome", 8*24*time.Hour)
	seed("Lima", 2*24*time.Hour)

	n, err := cm.ClearOlderThan(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "Lima", left[0].City)
}

func TestClearCityOfUnknownCity(t *testing.T) {
	cm := weather.NewCacheManager(store.NewMemoryStore(nil), nil, logger.Discard())
	assert.NoError(t, cm.ClearCity(context.Background(), "Nowhere"))
}
