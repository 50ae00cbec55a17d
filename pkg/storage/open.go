package storage

import (
	"context"
	"fmt"

	kitlog "github.com/go-kit/kit/log"

	"github.com/sguter90/weatherlog/pkg/config"
)

// Migrator is implemented by backends with a schema
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Open builds the log selected by cfg.StorageDriver, wrapped in Resilient.
func Open(cfg *config.Config, logger kitlog.Logger) (*Resilient, error) {
	var (
		log ReadingLog
		err error
	)

	switch cfg.StorageDriver {
	case config.DriverPostgres:
		log, err = NewPostgresLog(cfg.DatabaseURL, cfg.HealthInterval, logger)
	case config.DriverBadger:
		log, err = NewBadgerLog(BadgerOptions{Path: cfg.BadgerPath}, logger)
	case config.DriverMemory:
		log = NewMemoryLog(0)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageDriver, err)
	}

	return NewResilient(log, cfg.StoreTimeout, logger), nil
}

// Migrate runs schema migrations when the backend has any
func Migrate(ctx context.Context, log ReadingLog) error {
	if r, ok := log.(*Resilient); ok {
		log = r.Unwrap()
	}
	if m, ok := log.(Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}
