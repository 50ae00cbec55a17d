package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sguter90/weatherlog/pkg/models"
)

// PostgresLog stores readings in the samples table.
type PostgresLog struct {
	healthChecker *HealthChecker
	logger        kitlog.Logger
}

type sampleRow struct {
	TS      int64  `db:"ts"`
	Payload []byte `db:"payload"`
}

// Connect opens a pooled connection to the database at connStr
func Connect(connStr string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// NewPostgresLog connects, starts the health checker and returns the log.
// Migrations are not run; see Migrate.
func NewPostgresLog(connStr string, healthInterval time.Duration, logger kitlog.Logger) (*PostgresLog, error) {
	db, err := Connect(connStr)
	if err != nil {
		return nil, err
	}

	hc := NewHealthChecker(db, func() (*sqlx.DB, error) { return Connect(connStr) }, healthInterval, logger)
	hc.Start()

	return &PostgresLog{
		healthChecker: hc,
		logger:        kitlog.With(logger, "module", "postgres"),
	}, nil
}

// Migrate applies pending schema migrations
func (p *PostgresLog) Migrate(ctx context.Context) error {
	runner, err := NewMigrationsRunner(p.healthChecker.DB(), p.logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// IsConnectionHealthy returns the current health status
func (p *PostgresLog) IsConnectionHealthy() bool {
	return p.healthChecker.IsHealthy()
}

func (p *PostgresLog) Append(ctx context.Context, ts int64, fields models.Fields) error {
	payload, err := encodeFields(fields)
	if err != nil {
		return err
	}

	db, err := p.healthChecker.EnsureConnection(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO samples (ts, payload) VALUES ($1, $2)", ts, string(payload)); err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

func (p *PostgresLog) QueryRange(ctx context.Context, since, until int64) ([]models.RawReading, error) {
	db, err := p.healthChecker.EnsureConnection(ctx)
	if err != nil {
		return nil, err
	}

	query := `
        SELECT ts, payload
        FROM samples
        WHERE ts >= $1 AND ts < $2
        ORDER BY ts ASC, id ASC
    `

	var rows []sampleRow
	if err := db.SelectContext(ctx, &rows, query, since, until); err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}

	out := make([]models.RawReading, 0, len(rows))
	for _, row := range rows {
		fields, err := decodeFields(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("sample at %d: %w", row.TS, err)
		}
		out = append(out, models.RawReading{CapturedAt: row.TS, Fields: fields})
	}
	return out, nil
}

func (p *PostgresLog) Latest(ctx context.Context) (models.RawReading, error) {
	db, err := p.healthChecker.EnsureConnection(ctx)
	if err != nil {
		return models.RawReading{}, err
	}

	var row sampleRow
	err = db.GetContext(ctx, &row, "SELECT ts, payload FROM samples ORDER BY ts DESC, id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return models.RawReading{}, ErrNotFound
	}
	if err != nil {
		return models.RawReading{}, fmt.Errorf("failed to query latest sample: %w", err)
	}

	fields, err := decodeFields(row.Payload)
	if err != nil {
		return models.RawReading{}, err
	}
	return models.RawReading{CapturedAt: row.TS, Fields: fields}, nil
}

// Close closes the database connection and stops health checking
func (p *PostgresLog) Close() error {
	p.healthChecker.Stop()
	if db := p.healthChecker.DB(); db != nil {
		return db.Close()
	}
	return nil
}
