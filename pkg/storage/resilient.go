package storage

import (
	"context"
	"errors"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/metrics"
	"github.com/sguter90/weatherlog/pkg/models"
)

// Resilient bounds every call to the wrapped log with a timeout. Reads that
// fail are retried once. Appends are not retried, because an append that
// timed out may still have been committed.
type Resilient struct {
	next    ReadingLog
	timeout time.Duration
	logger  kitlog.Logger
}

// NewResilient wraps next
func NewResilient(next ReadingLog, timeout time.Duration, logger kitlog.Logger) *Resilient {
	return &Resilient{
		next:    next,
		timeout: timeout,
		logger:  kitlog.With(logger, "module", "storage"),
	}
}

// Unwrap returns the wrapped log
func (r *Resilient) Unwrap() ReadingLog {
	return r.next
}

func (r *Resilient) Append(ctx context.Context, ts int64, fields models.Fields) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.next.Append(ctx, ts, fields)
	if err != nil {
		metrics.StorageErrorCounter.WithLabelValues("append").Inc()
	}
	return err
}

func (r *Resilient) QueryRange(ctx context.Context, since, until int64) ([]models.RawReading, error) {
	var out []models.RawReading
	err := r.retry(ctx, "query_range", func(ctx context.Context) error {
		var err error
		out, err = r.next.QueryRange(ctx, since, until)
		return err
	})
	return out, err
}

func (r *Resilient) Latest(ctx context.Context) (models.RawReading, error) {
	var out models.RawReading
	err := r.retry(ctx, "latest", func(ctx context.Context) error {
		var err error
		out, err = r.next.Latest(ctx)
		return err
	})
	return out, err
}

func (r *Resilient) Close() error {
	return r.next.Close()
}

func (r *Resilient) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err = fn(attemptCtx)
		cancel()

		if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}

		level.Warn(r.logger).Log("msg", "storage call failed", "op", op, "attempt", attempt+1, "err", err)
	}

	metrics.StorageErrorCounter.WithLabelValues(op).Inc()
	return err
}
