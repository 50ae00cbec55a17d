package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"github.com/sguter90/weatherlog/pkg/metrics"
	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/storage"
	"github.com/sguter90/weatherlog/pkg/tabular"
)

// Reconciler copies windows of the reading log into a Store.
type Reconciler struct {
	log      storage.ReadingLog
	store    Store
	renderer *tabular.Renderer
	policy   Policy
	layout   Layout
	logger   kitlog.Logger

	// runs in this process are serialized, including reconcilers derived
	// with WithPolicy; the store token guards the rest
	mu *sync.Mutex
}

// NewReconciler creates a reconciler
func NewReconciler(log storage.ReadingLog, store Store, renderer *tabular.Renderer, policy Policy, layout Layout, logger kitlog.Logger) *Reconciler {
	return &Reconciler{
		log:      log,
		store:    store,
		renderer: renderer,
		policy:   policy,
		layout:   layout,
		logger:   kitlog.With(logger, "module", "archive"),
		mu:       &sync.Mutex{},
	}
}

// Policy returns the configured policy
func (r *Reconciler) Policy() Policy {
	return r.policy
}

// WithPolicy returns a reconciler sharing everything but the policy
func (r *Reconciler) WithPolicy(p Policy) *Reconciler {
	return &Reconciler{
		log:      r.log,
		store:    r.store,
		renderer: r.renderer,
		policy:   p,
		layout:   r.layout,
		logger:   r.logger,
		mu:       r.mu,
	}
}

// Archive writes readings captured in [start, end) in epoch milliseconds.
// It never returns an error: failures are reported in the result and logged.
func (r *Reconciler) Archive(ctx context.Context, start, end int64) models.ArchiveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := uuid.New().String()
	logger := kitlog.With(r.logger, "run", runID, "policy", string(r.policy), "start", start, "end", end)

	result := r.archive(ctx, start, end, runID)

	outcome := "written"
	switch {
	case !result.OK:
		outcome = "failed"
		level.Error(logger).Log("msg", "archive failed", "path", pathOrEmpty(result.Path), "status", result.Status, "err", result.Message)
	case result.Path == nil:
		outcome = "empty"
		level.Debug(logger).Log("msg", result.Message)
	case result.Rows == 0:
		outcome = "noop"
		level.Info(logger).Log("msg", result.Message, "path", *result.Path)
	default:
		metrics.ArchivedRowsCounter.Add(float64(result.Rows))
		level.Info(logger).Log("msg", result.Message, "path", *result.Path, "rows", result.Rows)
	}
	metrics.ArchiveRunCounter.WithLabelValues(outcome).Inc()

	return result
}

func (r *Reconciler) archive(ctx context.Context, start, end int64, runID string) models.ArchiveResult {
	readings, err := r.log.QueryRange(ctx, start, end)
	if err != nil {
		return failure(nil, fmt.Errorf("failed to read window: %w", err))
	}
	if len(readings) == 0 {
		return models.ArchiveResult{OK: true, Message: "no data in window"}
	}

	if r.policy == Append {
		p := r.layout.Path(Append, time.UnixMilli(start))
		message := fmt.Sprintf("archive %s %s (run %s)", p, windowLabel(start, end), runID)
		return r.appendTo(ctx, p, readings, message)
	}

	parts := partitions(readings)
	results := make([]models.ArchiveResult, 0, len(parts))
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			results = append(results, failure(nil, err))
			break
		}
		p := r.layout.Path(PartitionOnce, part.start)
		from, to := part.start.UnixMilli(), part.start.Add(time.Hour).UnixMilli()
		message := fmt.Sprintf("archive %s %s (run %s)", p, windowLabel(from, to), runID)
		results = append(results, r.createOnce(ctx, p, part.readings, message))
	}
	return combine(results)
}

// createOnce writes a partition file unless it already exists
func (r *Reconciler) createOnce(ctx context.Context, p string, readings []models.RawReading, message string) models.ArchiveResult {
	_, err := r.store.GetContent(ctx, p)
	switch {
	case err == nil:
		return models.ArchiveResult{OK: true, Path: &p, Message: "already archived"}
	case !errors.Is(err, ErrNotFound):
		return failure(&p, fmt.Errorf("failed to read %s: %w", p, err))
	}

	table := r.renderer.Table(readings)
	if err := r.store.PutContent(ctx, p, table.Encode(), "", message); err != nil {
		return failure(&p, fmt.Errorf("failed to create %s: %w", p, err))
	}
	return models.ArchiveResult{OK: true, Path: &p, Message: "created", Rows: table.Len()}
}

// appendTo adds the readings the file at p does not hold yet
func (r *Reconciler) appendTo(ctx context.Context, p string, readings []models.RawReading, message string) models.ArchiveResult {
	table := r.renderer.Table(readings)

	existing, err := r.store.GetContent(ctx, p)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := r.store.PutContent(ctx, p, table.Encode(), "", message); err != nil {
			return failure(&p, fmt.Errorf("failed to create %s: %w", p, err))
		}
		return models.ArchiveResult{OK: true, Path: &p, Message: "created", Rows: table.Len()}
	case err != nil:
		return failure(&p, fmt.Errorf("failed to read %s: %w", p, err))
	}

	merged, added, err := appendRows(existing.Data, table)
	if err != nil {
		return failure(&p, err)
	}
	if added == 0 {
		return models.ArchiveResult{OK: true, Path: &p, Message: "no new rows"}
	}

	if err := r.store.PutContent(ctx, p, merged, existing.Token, message); err != nil {
		return failure(&p, fmt.Errorf("failed to update %s: %w", p, err))
	}
	return models.ArchiveResult{OK: true, Path: &p, Message: "appended", Rows: added}
}

type partition struct {
	start    time.Time
	readings []models.RawReading
}

// partitions groups readings by the UTC hour they were captured in, oldest
// hour first
func partitions(readings []models.RawReading) []partition {
	byHour := make(map[int64][]models.RawReading)
	for _, rd := range readings {
		h := time.UnixMilli(rd.CapturedAt).UTC().Truncate(time.Hour).UnixMilli()
		byHour[h] = append(byHour[h], rd)
	}

	hours := make([]int64, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i] < hours[j] })

	parts := make([]partition, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, partition{start: time.UnixMilli(h).UTC(), readings: byHour[h]})
	}
	return parts
}

// combine folds per-partition results into the result of a run. A single
// partition is reported as is.
func combine(results []models.ArchiveResult) models.ArchiveResult {
	if len(results) == 1 {
		return results[0]
	}

	var created, skipped int
	var failed []models.ArchiveResult
	out := models.ArchiveResult{OK: true}
	for _, res := range results {
		if res.Path != nil {
			out.Path = res.Path
		}
		out.Rows += res.Rows
		switch {
		case !res.OK:
			failed = append(failed, res)
		case res.Rows > 0:
			created++
		default:
			skipped++
		}
	}

	parts := []string{fmt.Sprintf("%d created", created), fmt.Sprintf("%d already archived", skipped)}
	if len(failed) > 0 {
		out.OK = false
		out.Status = failed[0].Status
		out.Path = failed[0].Path
		parts = append(parts, fmt.Sprintf("%d failed: %s", len(failed), failed[0].Message))
	}
	out.Message = strings.Join(parts, ", ")
	return out
}

// appendRows merges the rows of incoming the existing CSV does not hold yet
// and returns the re-encoded file and the number of rows added. Rows older
// than the newest ts in the file are skipped; rows at that ts are skipped only
// when the file holds the same raw_json for it, so readings sharing a
// timestamp are not lost.
func appendRows(existing []byte, incoming *tabular.Table) ([]byte, int, error) {
	current, err := tabular.Parse(bytes.NewReader(existing))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode existing archive: %w", err)
	}
	if len(current.Columns) == 0 {
		current = tabular.NewTable()
	}

	var newest int64 = -1
	for _, row := range current.Rows {
		if ts, err := strconv.ParseInt(row[tabular.ColumnTS], 10, 64); err == nil && ts > newest {
			newest = ts
		}
	}

	// raw_json of the rows already archived at newest, with multiplicity
	atNewest := make(map[string]int)
	for _, row := range current.Rows {
		if ts, err := strconv.ParseInt(row[tabular.ColumnTS], 10, 64); err == nil && ts == newest {
			atNewest[row[tabular.ColumnRawJSON]]++
		}
	}

	fresh := &tabular.Table{Columns: incoming.Columns}
	for _, row := range incoming.Rows {
		ts, err := strconv.ParseInt(row[tabular.ColumnTS], 10, 64)
		if err != nil || ts < newest {
			continue
		}
		if ts == newest {
			if raw := row[tabular.ColumnRawJSON]; atNewest[raw] > 0 {
				atNewest[raw]--
				continue
			}
		}
		fresh.Rows = append(fresh.Rows, row)
	}
	if fresh.Len() == 0 {
		return nil, 0, nil
	}

	current.Merge(fresh)
	return current.Encode(), fresh.Len(), nil
}

func failure(path *string, err error) models.ArchiveResult {
	res := models.ArchiveResult{OK: false, Path: path, Message: err.Error()}

	var se *StatusError
	switch {
	case errors.As(err, &se):
		res.Status = se.Status
	case errors.Is(err, ErrConflict):
		res.Status = 409
	}
	return res
}

func windowLabel(start, end int64) string {
	return fmt.Sprintf("%s..%s",
		time.UnixMilli(start).UTC().Format(time.RFC3339),
		time.UnixMilli(end).UTC().Format(time.RFC3339))
}

func pathOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
