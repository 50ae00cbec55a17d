package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sguter90/weatherlog/pkg/models"
)

// testReadingLog exercises the ReadingLog contract against any backend.
func testReadingLog(t *testing.T, newLog func(t *testing.T) ReadingLog) {
	ctx := context.Background()

	t.Run("latest on empty log", func(t *testing.T) {
		l := newLog(t)
		_, err := l.Latest(ctx)
		assert.True(t, errors.Is(err, ErrNotFound), "Expected ErrNotFound, got %v", err)
	})

	t.Run("round trip", func(t *testing.T) {
		l := newLog(t)
		fields := models.Fields{
			"tempf":        "71.6",
			"humidity":     json.Number("40"),
			"PASSKEY":      "abc",
			"stationtype":  "EasyWeatherV1.6.4",
			"windspeedmph": json.Number("3.36"),
		}

		require.NoError(t, l.Append(ctx, 1_700_000_000_000, fields))

		got, err := l.QueryRange(ctx, 1_699_999_999_000, 1_700_000_001_000)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1_700_000_000_000), got[0].CapturedAt)
		assert.Equal(t, fields, got[0].Fields)

		latest, err := l.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, fields, latest.Fields)
	})

	t.Run("range is half open and ordered", func(t *testing.T) {
		l := newLog(t)
		for _, ts := range []int64{3000, 1000, 2000, 4000} {
			require.NoError(t, l.Append(ctx, ts, models.Fields{"n": json.Number("1")}))
		}

		got, err := l.QueryRange(ctx, 1000, 4000)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, int64(1000), got[0].CapturedAt)
		assert.Equal(t, int64(2000), got[1].CapturedAt)
		assert.Equal(t, int64(3000), got[2].CapturedAt)

		empty, err := l.QueryRange(ctx, 5000, 6000)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("equal timestamps keep insertion order", func(t *testing.T) {
		l := newLog(t)
		require.NoError(t, l.Append(ctx, 1000, models.Fields{"seq": "first"}))
		require.NoError(t, l.Append(ctx, 1000, models.Fields{"seq": "second"}))

		got, err := l.QueryRange(ctx, 0, 2000)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "first", got[0].Fields["seq"])
		assert.Equal(t, "second", got[1].Fields["seq"])

		latest, err := l.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, "second", latest.Fields["seq"])
	})

	t.Run("nil fields", func(t *testing.T) {
		l := newLog(t)
		require.NoError(t, l.Append(ctx, 1000, nil))

		latest, err := l.Latest(ctx)
		require.NoError(t, err)
		assert.NotNil(t, latest.Fields)
		assert.Empty(t, latest.Fields)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		l := newLog(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, l.Append(ctx, int64(1000+i), models.Fields{"i": json.Number("1")}))
			}(i)
		}
		wg.Wait()

		got, err := l.QueryRange(ctx, 0, 10_000)
		require.NoError(t, err)
		assert.Len(t, got, 20)
	})
}
