package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/weather-cache/internal/common"
	"github.com/i474232898/weather-cache/internal/weather"
)

const (
	redisKeyPrefix      = "weather:city:"
	redisLastUpdatedIdx = "weather:idx:last_updated"
	redisCreatedAtIdx   = "weather:idx:created_at"
)

// RedisStore keeps one hash per city plus two sorted-set indexes (scored by
// unix milliseconds) for the age-based sweeps and counts.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// OpenRedis connects to addr and pings the server.
func OpenRedis(ctx context.Context, addr, password string, db int, now func() time.Time) (*RedisStore, error) {
	if now == nil {
		now = time.Now
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, now), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

func redisKey(cityKey string) string {
	return redisKeyPrefix + cityKey
}

func redisScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (s *RedisStore) FindByCity(ctx context.Context, city string) (weather.WeatherSnapshot, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(common.NormalizeCity(city))).Result()
	if err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("failed to get from Redis: %w", err)
	}
	if len(fields) == 0 {
		return weather.WeatherSnapshot{}, weather.ErrSnapshotNotFound
	}
	return decodeRedisHash(fields)
}

func (s *RedisStore) FindRecentByCity(ctx context.Context, city string, maxAgeMinutes int) (weather.WeatherSnapshot, error) {
	snap, err := s.FindByCity(ctx, city)
	if err != nil {
		return weather.WeatherSnapshot{}, err
	}
	if !snap.LastUpdated.After(weather.RecencyCutoff(s.now(), maxAgeMinutes)) {
		return weather.WeatherSnapshot{}, weather.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *RedisStore) Upsert(ctx context.Context, snap weather.WeatherSnapshot) (weather.WeatherSnapshot, error) {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}
	cityKey := common.NormalizeCity(snap.City)
	key := redisKey(cityKey)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "created_at", snap.CreatedAt.UTC().Format(time.RFC3339Nano))
		pipe.HSet(ctx, key, map[string]interface{}{
			"city":             snap.City,
			"country":          snap.Country,
			"temperature":      snap.Temperature,
			"condition":        snap.Condition,
			"humidity":         snap.Humidity,
			"wind_speed":       snap.WindSpeed,
			"last_updated":     snap.LastUpdated.UTC().Format(time.RFC3339Nano),
			"api_last_updated": snap.APILastUpdated,
		})
		pipe.ZAdd(ctx, redisLastUpdatedIdx, redis.Z{Score: redisScore(snap.LastUpdated), Member: cityKey})
		pipe.ZAddNX(ctx, redisCreatedAtIdx, redis.Z{Score: redisScore(snap.CreatedAt), Member: cityKey})
		return nil
	})
	if err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("failed to set data in Redis: %w", err)
	}
	return s.FindByCity(ctx, snap.City)
}

func (s *RedisStore) DeleteByCity(ctx context.Context, city string) error {
	cityKey := common.NormalizeCity(city)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey(cityKey))
		pipe.ZRem(ctx, redisLastUpdatedIdx, cityKey)
		pipe.ZRem(ctx, redisCreatedAtIdx, cityKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete from Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	cityKeys, err := s.client.ZRangeByScore(ctx, redisCreatedAtIdx, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan keys: %w", err)
	}
	if len(cityKeys) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(cityKeys))
	keys := make([]string, len(cityKeys))
	for i, k := range cityKeys {
		members[i] = k
		keys[i] = redisKey(k)
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, redisLastUpdatedIdx, members...)
		pipe.ZRem(ctx, redisCreatedAtIdx, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys: %w", err)
	}
	return int(deleted.Val()), nil
}

func (s *RedisStore) CountAll(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, redisLastUpdatedIdx).Result()
	return int(n), err
}

func (s *RedisStore) CountFreshSince(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.client.ZCount(ctx, redisLastUpdatedIdx,
		strconv.FormatInt(cutoff.UnixMilli(), 10), "+inf").Result()
	return int(n), err
}

func (s *RedisStore) List(ctx context.Context) ([]weather.WeatherSnapshot, error) {
	cityKeys, err := s.client.ZRange(ctx, redisLastUpdatedIdx, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(cityKeys)

	out := make([]weather.WeatherSnapshot, 0, len(cityKeys))
	for _, k := range cityKeys {
		fields, err := s.client.HGetAll(ctx, redisKey(k)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		snap, err := decodeRedisHash(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisHash(m map[string]string) (weather.WeatherSnapshot, error) {
	snap := weather.WeatherSnapshot{
		City:           m["city"],
		Country:        m["country"],
		Condition:      m["condition"],
		APILastUpdated: m["api_last_updated"],
	}

	var err error
	if snap.Temperature, err = strconv.ParseFloat(m["temperature"], 64); err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("decoding temperature: %w", err)
	}
	if snap.Humidity, err = strconv.Atoi(m["humidity"]); err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("decoding humidity: %w", err)
	}
	if snap.WindSpeed, err = strconv.ParseFloat(m["wind_speed"], 64); err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("decoding wind_speed: %w", err)
	}
	if snap.LastUpdated, err = time.Parse(time.RFC3339Nano, m["last_updated"]); err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("decoding last_updated: %w", err)
	}
	if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, m["created_at"]); err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("decoding created_at: %w", err)
	}
	snap.LastUpdated = snap.LastUpdated.UTC()
	snap.CreatedAt = snap.CreatedAt.UTC()
	return snap, nil
}

var _ weather.RecordStore = (*RedisStore)(nil)
