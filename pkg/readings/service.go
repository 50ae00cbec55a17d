package readings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/clock"
	"github.com/sguter90/weatherlog/pkg/metrics"
	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/normalizer"
	"github.com/sguter90/weatherlog/pkg/storage"
	"github.com/sguter90/weatherlog/pkg/tabular"
)

// DefaultHistoryHours is the window used when a request does not give one
const DefaultHistoryHours = 24

// Service is the read and write side of the reading log used by the HTTP
// handlers.
type Service struct {
	log            storage.ReadingLog
	renderer       *tabular.Renderer
	normalizer     *normalizer.Normalizer
	clock          clock.Clock
	staleThreshold time.Duration
	logger         kitlog.Logger

	// ingestion is serialized so capture times are assigned in append order
	mu     sync.Mutex
	lastTS int64
	seeded bool
}

// NewService creates a service over log
func NewService(log storage.ReadingLog, renderer *tabular.Renderer, clk clock.Clock, staleThreshold time.Duration, logger kitlog.Logger) *Service {
	return &Service{
		log:            log,
		renderer:       renderer,
		normalizer:     normalizer.New(nil, nil),
		clock:          clk,
		staleThreshold: staleThreshold,
		logger:         kitlog.With(logger, "module", "readings"),
	}
}

// Snapshot is a single normalized reading as served by /api/latest
type Snapshot struct {
	TS      int64                  `json:"ts"`
	TSLocal string                 `json:"ts_local"`
	Data    map[string]interface{} `json:"data"`
}

// RawSnapshot is a single stored payload as served by the raw endpoints
type RawSnapshot struct {
	TS      int64         `json:"ts"`
	TSLocal string        `json:"ts_local"`
	Payload models.Fields `json:"payload"`
}

// Ingest stamps fields with the current time and appends them to the log.
// Capture times never go backwards: if the clock is behind the last assigned
// time, the last time is reused.
func (s *Service) Ingest(ctx context.Context, stationType string, fields models.Fields) (models.RawReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		latest, err := s.log.Latest(ctx)
		switch {
		case err == nil:
			s.lastTS = latest.CapturedAt
			s.seeded = true
		case errors.Is(err, storage.ErrNotFound):
			s.seeded = true
		default:
			level.Warn(s.logger).Log("msg", "failed to read last capture time", "err", err)
		}
	}

	ts := clock.Millis(s.clock)
	if ts < s.lastTS {
		ts = s.lastTS
	}

	// the client may have gone away while we waited for the lock
	if err := ctx.Err(); err != nil {
		return models.RawReading{}, err
	}

	if err := s.log.Append(ctx, ts, fields); err != nil {
		return models.RawReading{}, fmt.Errorf("failed to store reading: %w", err)
	}
	s.lastTS = ts

	metrics.IngestCounter.WithLabelValues(stationType).Inc()
	metrics.LastReadingGauge.Set(float64(ts) / 1000)

	return models.RawReading{CapturedAt: ts, Fields: fields}, nil
}

// Latest returns the newest reading normalized, or nil if there is none
func (s *Service) Latest(ctx context.Context) (*Snapshot, error) {
	r, err := s.latest(ctx)
	if err != nil || r == nil {
		return nil, err
	}
	return &Snapshot{
		TS:      r.CapturedAt,
		TSLocal: s.local(r.CapturedAt),
		Data:    s.normalizer.Normalize(r.Fields).Map(),
	}, nil
}

// LatestRaw returns the newest stored payload, or nil if there is none
func (s *Service) LatestRaw(ctx context.Context) (*RawSnapshot, error) {
	r, err := s.latest(ctx)
	if err != nil || r == nil {
		return nil, err
	}
	return s.raw(*r), nil
}

// History returns the normalized series for the query window. Each point
// carries t and t_local next to the normalized fields.
func (s *Service) History(ctx context.Context, q models.HistoryQuery) ([]map[string]interface{}, error) {
	readings, err := s.window(ctx, q, true)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(readings))
	for _, r := range readings {
		point := s.normalizer.Normalize(r.Fields).Map()
		point["t"] = r.CapturedAt
		point["t_local"] = s.local(r.CapturedAt)
		out = append(out, point)
	}
	return out, nil
}

// HistoryRaw returns the stored payloads for the query window
func (s *Service) HistoryRaw(ctx context.Context, q models.HistoryQuery) ([]*RawSnapshot, error) {
	readings, err := s.window(ctx, q, true)
	if err != nil {
		return nil, err
	}

	out := make([]*RawSnapshot, 0, len(readings))
	for _, r := range readings {
		out = append(out, s.raw(r))
	}
	return out, nil
}

// Export renders the window as a table. Without hours every stored reading
// is exported.
func (s *Service) Export(ctx context.Context, q models.HistoryQuery) (*tabular.Table, error) {
	readings, err := s.window(ctx, q, false)
	if err != nil {
		return nil, err
	}
	return s.renderer.Table(readings), nil
}

// Health reports how long ago the last reading arrived
func (s *Service) Health(ctx context.Context) (models.HealthReport, error) {
	now := s.clock.Now()
	report := models.HealthReport{
		Status:   models.HealthNoData,
		Now:      now.UnixMilli(),
		NowLocal: s.local(now.UnixMilli()),
	}

	r, err := s.latest(ctx)
	if err != nil {
		return report, err
	}
	if r == nil {
		return report, nil
	}

	lag := int64(math.Round(float64(now.UnixMilli()-r.CapturedAt) / 1000))
	local := s.local(r.CapturedAt)
	ts := r.CapturedAt

	report.LastTS = &ts
	report.LastTSLocal = &local
	report.LagSeconds = &lag
	report.Last = s.renderer.Public(r.Fields)

	if time.Duration(lag)*time.Second <= s.staleThreshold {
		report.Status = models.HealthOK
	} else {
		report.Status = models.HealthStale
	}
	return report, nil
}

// Stats computes count, min, max and mean of every normalized numeric field
// over the window. Fields never observed in the window are omitted.
func (s *Service) Stats(ctx context.Context, q models.HistoryQuery) (models.StatsReport, error) {
	now := s.clock.Now()
	q = withDefaultHours(q)

	report := models.StatsReport{
		Since:  q.Since(now),
		Until:  now.UnixMilli(),
		Fields: map[string]models.FieldStats{},
	}

	readings, err := s.log.QueryRange(ctx, report.Since, math.MaxInt64)
	if err != nil {
		return report, err
	}
	report.Samples = len(readings)

	sums := map[string]float64{}
	for _, r := range readings {
		for _, c := range s.normalizer.Normalize(r.Fields).Columns() {
			if c.IsText || c.Number == nil {
				continue
			}
			v := *c.Number
			fs := report.Fields[c.Name]
			if fs.Count == 0 {
				fs.Min, fs.Max = floatPtr(v), floatPtr(v)
			} else {
				if v < *fs.Min {
					fs.Min = floatPtr(v)
				}
				if v > *fs.Max {
					fs.Max = floatPtr(v)
				}
			}
			fs.Count++
			sums[c.Name] += v
			report.Fields[c.Name] = fs
		}
	}

	for name, fs := range report.Fields {
		fs.Avg = floatPtr(sums[name] / float64(fs.Count))
		report.Fields[name] = fs
	}
	return report, nil
}

func (s *Service) latest(ctx context.Context) (*models.RawReading, error) {
	r, err := s.log.Latest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// window reads every reading captured since the query's lower bound. When
// defaultHours is false and the query has no hours, the whole log is read.
func (s *Service) window(ctx context.Context, q models.HistoryQuery, defaultHours bool) ([]models.RawReading, error) {
	if !q.HasHours && !defaultHours {
		return s.log.QueryRange(ctx, 0, math.MaxInt64)
	}
	q = withDefaultHours(q)
	return s.log.QueryRange(ctx, q.Since(s.clock.Now()), math.MaxInt64)
}

func (s *Service) raw(r models.RawReading) *RawSnapshot {
	return &RawSnapshot{
		TS:      r.CapturedAt,
		TSLocal: s.local(r.CapturedAt),
		Payload: s.renderer.Public(r.Fields),
	}
}

func (s *Service) local(ts int64) string {
	return tabular.FormatLocal(ts, s.renderer.Location())
}

func withDefaultHours(q models.HistoryQuery) models.HistoryQuery {
	if !q.HasHours {
		q.Hours = DefaultHistoryHours
		q.HasHours = true
	}
	return q
}

func floatPtr(v float64) *float64 {
	return &v
}
