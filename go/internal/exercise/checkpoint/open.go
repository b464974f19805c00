package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/excon/go/internal/dbconfig"
)

// Driver identifies a concrete KV implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-process only (tests / single process)
	DriverSQLite   Driver = "sqlite"   // shared file on one host
	DriverPostgres Driver = "postgres" // shared across hosts
)

// Config selects and configures the KV backend.
type Config struct {
	Driver       Driver          `yaml:"driver"`
	SQLitePath   string          `yaml:"sqlite_path"`
	PollInterval time.Duration   `yaml:"poll_interval"`
	Postgres     dbconfig.Config `yaml:"-"`
}

// Open builds the KV named by cfg.Driver. An empty driver means sqlite.
func Open(ctx context.Context, cfg Config) (KV, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath, WithPollInterval(cfg.PollInterval))
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %s", driver)
	}
}
