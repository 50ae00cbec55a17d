package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/jmoiron/sqlx"
)

// HealthChecker monitors the database connection and reconnects when a ping
// fails.
type HealthChecker struct {
	db            *sqlx.DB
	connect       func() (*sqlx.DB, error)
	checkInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	mu            sync.RWMutex
	isHealthy     bool
	logger        kitlog.Logger
}

// NewHealthChecker creates a new health checker. connect is used to replace
// the connection after a failed check; it may be nil.
func NewHealthChecker(db *sqlx.DB, connect func() (*sqlx.DB, error), checkInterval time.Duration, logger kitlog.Logger) *HealthChecker {
	return &HealthChecker{
		db:            db,
		connect:       connect,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
		isHealthy:     true,
		logger:        kitlog.With(logger, "module", "dbhealth"),
	}
}

// Start begins monitoring the database connection
func (hc *HealthChecker) Start() {
	ticker := time.NewTicker(hc.checkInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-hc.stopChan:
				return
			case <-ticker.C:
				hc.checkConnection()
			}
		}
	}()
}

// Stop stops monitoring. It is safe to call more than once.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() { close(hc.stopChan) })
}

// DB returns the current connection
func (hc *HealthChecker) DB() *sqlx.DB {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.db
}

func (hc *HealthChecker) checkConnection() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := hc.DB().PingContext(ctx)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	if err != nil {
		level.Error(hc.logger).Log("msg", "database health check failed", "err", err)
		hc.isHealthy = false

		if err := hc.reconnect(); err != nil {
			level.Error(hc.logger).Log("msg", "failed to reconnect to database", "err", err)
		}
		return
	}

	if !hc.isHealthy {
		level.Info(hc.logger).Log("msg", "database connection restored")
	}
	hc.isHealthy = true
}

// reconnect must be called with mu held
func (hc *HealthChecker) reconnect() error {
	if hc.connect == nil {
		return fmt.Errorf("no reconnect function configured")
	}

	newDB, err := hc.connect()
	if err != nil {
		return err
	}

	if hc.db != nil {
		hc.db.Close()
	}
	hc.db = newDB
	hc.isHealthy = true
	level.Info(hc.logger).Log("msg", "database connection re-established")
	return nil
}

// IsHealthy returns the current health status of the connection
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// EnsureConnection fails fast when the last check marked the connection
// unhealthy, and otherwise verifies it with a quick ping.
func (hc *HealthChecker) EnsureConnection(ctx context.Context) (*sqlx.DB, error) {
	hc.mu.RLock()
	isHealthy := hc.isHealthy
	db := hc.db
	hc.mu.RUnlock()

	if !isHealthy {
		return nil, fmt.Errorf("database connection is not healthy")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		hc.mu.Lock()
		hc.isHealthy = false
		hc.mu.Unlock()
		return nil, fmt.Errorf("database connection check failed: %w", err)
	}

	return db, nil
}
