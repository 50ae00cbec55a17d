package storage

import (
	"context"
	"errors"

	"github.com/sguter90/weatherlog/pkg/models"
)

// ErrNotFound is returned by Latest when the log holds no readings.
var ErrNotFound = errors.New("no readings stored")

// ReadingLog is the append-only, time ordered log of raw readings.
type ReadingLog interface {
	// Append stores fields captured at ts (epoch milliseconds). Readings are
	// immutable once appended.
	Append(ctx context.Context, ts int64, fields models.Fields) error

	// QueryRange returns readings with since <= ts < until, ordered by ts and
	// then by insertion order.
	QueryRange(ctx context.Context, since, until int64) ([]models.RawReading, error)

	// Latest returns the most recently appended reading or ErrNotFound.
	Latest(ctx context.Context) (models.RawReading, error)

	// Close releases the underlying resources
	Close() error
}
