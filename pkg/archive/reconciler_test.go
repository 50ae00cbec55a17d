package archive

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/storage"
	"github.com/sguter90/weatherlog/pkg/tabular"
)

var hour = time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)

type ReconcilerSuite struct {
	suite.Suite

	log   *storage.MemoryLog
	fs    afero.Fs
	store *FSStore
}

func (s *ReconcilerSuite) SetupTest() {
	s.log = storage.NewMemoryLog(0)
	s.fs = afero.NewMemMapFs()
	s.store = NewFSStore(s.fs, "/")
}

func (s *ReconcilerSuite) reconciler(p Policy) *Reconciler {
	layout := Layout{Prefix: "archives/ecowitt", File: "ecowitt_history.csv"}
	return NewReconciler(s.log, s.store, tabular.NewRenderer(time.UTC, []string{"passkey"}), p, layout, kitlog.NewNopLogger())
}

func (s *ReconcilerSuite) add(offset time.Duration, fields models.Fields) {
	s.Require().NoError(s.log.Append(context.Background(), hour.Add(offset).UnixMilli(), fields))
}

func (s *ReconcilerSuite) read(path string) string {
	b, err := afero.ReadFile(s.fs, "/"+path)
	s.Require().NoError(err)
	return string(b)
}

func (s *ReconcilerSuite) TestEmptyWindow() {
	r := s.reconciler(PartitionOnce)

	res := r.Archive(context.Background(), hour.UnixMilli(), hour.Add(time.Hour).UnixMilli())

	s.True(res.OK)
	s.Nil(res.Path)
	s.Equal("no data in window", res.Message)
}

func (s *ReconcilerSuite) TestPartitionOnceIsIdempotent() {
	s.add(5*time.Minute, models.Fields{"tempf": "70", "passkey": "secret"})
	s.add(10*time.Minute, models.Fields{"tempf": "71"})
	r := s.reconciler(PartitionOnce)
	start, end := hour.UnixMilli(), hour.Add(time.Hour).UnixMilli()

	first := r.Archive(context.Background(), start, end)
	s.Require().True(first.OK, first.Message)
	s.Require().NotNil(first.Path)
	s.Equal("archives/ecowitt/2024/06/01/1300.csv", *first.Path)
	s.Equal(2, first.Rows)

	content := s.read(*first.Path)
	s.True(strings.HasPrefix(content, "\"ts\",\"ts_local\","))
	s.NotContains(content, "secret")
	s.Contains(content, "\"01/06/2024 13:05\"")

	// a reading arriving late must not rewrite the partition
	s.add(15*time.Minute, models.Fields{"tempf": "72"})

	second := r.Archive(context.Background(), start, end)
	s.True(second.OK)
	s.Equal(*first.Path, *second.Path)
	s.Equal("already archived", second.Message)
	s.Equal(0, second.Rows)
	s.Equal(content, s.read(*first.Path))
}

func (s *ReconcilerSuite) TestAppendSkipsArchivedRowsAndWidensHeader() {
	s.add(1*time.Minute, models.Fields{"a": "1"})
	r := s.reconciler(Append)
	ctx := context.Background()

	res := r.Archive(ctx, hour.UnixMilli(), hour.Add(time.Hour).UnixMilli())
	s.Require().True(res.OK, res.Message)
	s.Equal("archives/ecowitt/ecowitt_history.csv", *res.Path)
	s.Equal("created", res.Message)

	again := r.Archive(ctx, hour.UnixMilli(), hour.Add(time.Hour).UnixMilli())
	s.True(again.OK)
	s.Equal("no new rows", again.Message)

	s.add(2*time.Minute, models.Fields{"zz_new_field": "9"})
	third := r.Archive(ctx, hour.UnixMilli(), hour.Add(time.Hour).UnixMilli())
	s.Require().True(third.OK, third.Message)
	s.Equal("appended", third.Message)
	s.Equal(1, third.Rows)

	parsed, err := tabular.Parse(strings.NewReader(s.read(*third.Path)))
	s.Require().NoError(err)
	s.Equal(2, parsed.Len())
	s.Contains(parsed.Columns, "a")
	s.Contains(parsed.Columns, "zz_new_field")
	s.Equal("1", parsed.Rows[0]["a"])
	s.Equal("9", parsed.Rows[1]["zz_new_field"])
}

func (s *ReconcilerSuite) TestAppendKeepsReadingsSharingTimestamp() {
	s.add(1*time.Minute, models.Fields{"tempf": "70"})
	r := s.reconciler(Append)
	ctx := context.Background()
	start, end := hour.UnixMilli(), hour.Add(time.Hour).UnixMilli()

	first := r.Archive(ctx, start, end)
	s.Require().True(first.OK, first.Message)
	s.Equal("created", first.Message)

	// ingest clamps a backwards clock onto the previous ts
	s.add(1*time.Minute, models.Fields{"tempf": "71"})

	second := r.Archive(ctx, start, end)
	s.Require().True(second.OK, second.Message)
	s.Equal("appended", second.Message)
	s.Equal(1, second.Rows)

	third := r.Archive(ctx, start, end)
	s.True(third.OK)
	s.Equal("no new rows", third.Message)

	parsed, err := tabular.Parse(strings.NewReader(s.read(*second.Path)))
	s.Require().NoError(err)
	s.Require().Equal(2, parsed.Len())
	s.Equal(parsed.Rows[0]["ts"], parsed.Rows[1]["ts"])
	s.Equal("70", parsed.Rows[0]["tempf"])
	s.Equal("71", parsed.Rows[1]["tempf"])
}

func (s *ReconcilerSuite) TestPartitionOnceFillsHourMissedByEarlierRun() {
	s.add(5*time.Minute, models.Fields{"tempf": "70"})
	s.add(65*time.Minute, models.Fields{"tempf": "72"})
	store := &flakyStore{Store: s.store, failPuts: 1}
	layout := Layout{Prefix: "archives/ecowitt", File: "ecowitt_history.csv"}
	r := NewReconciler(s.log, store, tabular.NewRenderer(time.UTC, nil), PartitionOnce, layout, kitlog.NewNopLogger())
	ctx := context.Background()

	start, end := Window(PartitionOnce, hour.Add(2*time.Hour+5*time.Minute), 3*time.Hour)
	first := r.Archive(ctx, start.UnixMilli(), end.UnixMilli())
	s.False(first.OK)
	s.Equal(502, first.Status)
	s.Require().NotNil(first.Path)
	s.Equal("archives/ecowitt/2024/06/01/1300.csv", *first.Path)
	s.Contains(first.Message, "1 created, 0 already archived, 1 failed")

	exists, err := afero.Exists(s.fs, "/archives/ecowitt/2024/06/01/1300.csv")
	s.Require().NoError(err)
	s.False(exists)
	s.Contains(s.read("archives/ecowitt/2024/06/01/1400.csv"), "\"72\"")

	start, end = Window(PartitionOnce, hour.Add(3*time.Hour+5*time.Minute), 3*time.Hour)
	second := r.Archive(ctx, start.UnixMilli(), end.UnixMilli())
	s.Require().True(second.OK, second.Message)
	s.Equal(1, second.Rows)
	s.Equal("1 created, 1 already archived", second.Message)
	s.Contains(s.read("archives/ecowitt/2024/06/01/1300.csv"), "\"70\"")
}

func (s *ReconcilerSuite) TestWithPolicySharesRunLock() {
	s.add(1*time.Minute, models.Fields{"tempf": "70"})
	r := s.reconciler(PartitionOnce)
	appender := r.WithPolicy(Append)
	s.Same(r.mu, appender.mu)

	r.mu.Lock()
	done := make(chan models.ArchiveResult, 1)
	go func() {
		done <- appender.Archive(context.Background(), hour.UnixMilli(), hour.Add(time.Hour).UnixMilli())
	}()

	select {
	case <-done:
		s.Fail("append run did not wait for the running partition run")
	case <-time.After(50 * time.Millisecond):
	}
	r.mu.Unlock()

	res := <-done
	s.True(res.OK, res.Message)
	s.Equal(Append, appender.Policy())
}

func (s *ReconcilerSuite) TestLogFailureIsReported() {
	r := NewReconciler(failingLog{}, s.store, tabular.NewRenderer(time.UTC, nil), PartitionOnce, Layout{Prefix: "x"}, kitlog.NewNopLogger())

	res := r.Archive(context.Background(), 0, 1)

	s.False(res.OK)
	s.Contains(res.Message, "log offline")
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

// racingStore lets a second writer change the file between the reconciler's
// read and its write
type racingStore struct {
	Store
	race func()
}

func (r *racingStore) GetContent(ctx context.Context, path string) (Content, error) {
	c, err := r.Store.GetContent(ctx, path)
	if r.race != nil {
		r.race()
		r.race = nil
	}
	return c, err
}

func TestReconciler_ConcurrentWriterConflict(t *testing.T) {
	ctx := context.Background()
	log := storage.NewMemoryLog(0)
	require.NoError(t, log.Append(ctx, hour.UnixMilli(), models.Fields{"tempf": "60"}))

	fs := NewFSStore(afero.NewMemMapFs(), "/")
	path := "archives/ecowitt/ecowitt_history.csv"
	require.NoError(t, fs.PutContent(ctx, path, []byte("\"ts\",\"ts_local\"\n"), "", "seed"))

	store := &racingStore{Store: fs, race: func() {
		cur, err := fs.GetContent(ctx, path)
		require.NoError(t, err)
		require.NoError(t, fs.PutContent(ctx, path, []byte("\"ts\",\"ts_local\"\n\"1\",\"\"\n"), cur.Token, "other writer"))
	}}

	r := NewReconciler(log, store, tabular.NewRenderer(time.UTC, nil), Append,
		Layout{Prefix: "archives/ecowitt", File: "ecowitt_history.csv"}, kitlog.NewNopLogger())

	res := r.Archive(ctx, hour.UnixMilli(), hour.Add(time.Hour).UnixMilli())

	assert.False(t, res.OK)
	assert.Equal(t, 409, res.Status)
	require.NotNil(t, res.Path)

	after, err := fs.GetContent(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "\"ts\",\"ts_local\"\n\"1\",\"\"\n", string(after.Data))
}

// flakyStore fails the first failPuts writes
type flakyStore struct {
	Store
	failPuts int
}

func (f *flakyStore) PutContent(ctx context.Context, path string, data []byte, token, message string) error {
	if f.failPuts > 0 {
		f.failPuts--
		return &StatusError{Status: 502, Body: "bad gateway"}
	}
	return f.Store.PutContent(ctx, path, data, token, message)
}

func TestLayoutAndWindow(t *testing.T) {
	layout := Layout{Prefix: "archives/ecowitt", File: "ecowitt_history.csv"}
	now := time.Date(2024, 6, 1, 14, 25, 0, 0, time.UTC)

	start, end := Window(PartitionOnce, now, time.Hour)
	assert.Equal(t, hour, start)
	assert.Equal(t, hour.Add(time.Hour), end)
	assert.Equal(t, "archives/ecowitt/2024/06/01/1300.csv", layout.Path(PartitionOnce, start))

	// partial hours of the lookback are widened to the full hour
	start, end = Window(PartitionOnce, now, 90*time.Minute)
	assert.Equal(t, hour.Add(-time.Hour), start)
	assert.Equal(t, hour.Add(time.Hour), end)

	start, end = Window(Append, now, time.Hour)
	assert.Equal(t, now.Add(-time.Hour), start)
	assert.Equal(t, now, end)
	assert.Equal(t, "archives/ecowitt/ecowitt_history.csv", layout.Path(Append, start))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("append")
	require.NoError(t, err)
	assert.Equal(t, Append, p)

	_, err = ParsePolicy("rolling")
	assert.Error(t, err)
}

type failingLog struct{ storage.ReadingLog }

func (failingLog) QueryRange(context.Context, int64, int64) ([]models.RawReading, error) {
	return nil, errors.New("log offline")
}
