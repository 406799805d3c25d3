package store

import (
	"context"
	"fmt"

	"github.com/i474232898/weather-cache/internal/weather"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options selects and configures a RecordStore backend.
type Options struct {
	Driver        string
	SQLitePath    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open builds the RecordStore named by opts.Driver.
func Open(ctx context.Context, opts Options) (weather.RecordStore, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(nil), nil
	case DriverSQLite, "":
		return OpenSQLite(opts.SQLitePath, nil)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.PostgresDSN, nil)
	case DriverRedis:
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, nil)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
