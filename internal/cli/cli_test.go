package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/store"
	"github.com/i474232898/weather-cache/internal/weather"
)

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weather.db")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("LOG_LEVEL", "panic")
	t.Setenv("WEATHER_PROVIDER", "")
	return path
}

func TestSeedFixtures(t *testing.T) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore(func() time.Time { return now })

	n, err := SeedFixtures(context.Background(), st, now, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	tokyo, err := st.FindByCity(context.Background(), "tokyo")
	require.NoError(t, err)
	assert.Equal(t, now.Add(-45*time.Minute), tokyo.LastUpdated)
	assert.Equal(t, tokyo.LastUpdated, tokyo.CreatedAt)
	assert.Equal(t, "2025-06-16 11:15", tokyo.APILastUpdated)

	svc := weather.NewService(st, nil, 30, weather.WithClock(func() time.Time { return now }))
	stats, err := svc.GetCacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalCachedCities)
	assert.Equal(t, 1, stats.FreshCacheEntries)
}

func TestSeedStatsCleanupCommands(t *testing.T) {
	useSQLite(t)
	t.Setenv("WEATHER_CACHE_MAX_AGE_MINUTES", "50")

	out := runCmd(t, "seed")
	assert.Contains(t, out, "Seeded 4 cities.")

	out = runCmd(t, "stats")
	assert.Contains(t, out, "Store: sqlite")
	assert.Contains(t, out, "Cached cities: 4")
	assert.Contains(t, out, "Fresh: 2")
	assert.Contains(t, out, "Stale: 2")
	assert.Contains(t, out, "TTL: 50 minutes")
	assert.Contains(t, out, "New York")
	assert.Contains(t, out, "Tokyo")

	out = runCmd(t, "cleanup", "--days", "1")
	assert.Contains(t, out, "Nothing to clean up.")

	out = runCmd(t, "cleanup", "--days", "0")
	assert.Contains(t, out, "Removed 4 cached cities older than 0 days.")

	out = runCmd(t, "stats")
	assert.Contains(t, out, "Cached cities: 0")
}

func TestServeRequiresAPIKey(t *testing.T) {
	useSQLite(t)
	t.Setenv("WEATHER_API_KEY", "")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"serve"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.True(t, weather.IsKind(err, weather.KindConfiguration))
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123")
	t.Cleanup(func() { SetVersionInfo("dev", "none") })

	assert.Equal(t, "weather-cache 1.2.3 (commit: abc123)\n", runCmd(t, "version"))
}
