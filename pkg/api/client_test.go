package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sguter90/weatherlog/pkg/models"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithTimeout(2*time.Second), WithToken("secret-token"))
}

func TestHealth(t *testing.T) {
	lag := int64(42)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(models.HealthReport{Status: models.HealthOK, LagSeconds: &lag})
	})

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthOK, health.Status)
	require.NotNil(t, health.LagSeconds)
	assert.Equal(t, int64(42), *health.LagSeconds)
}

func TestLatestEmpty(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	latest, err := c.Latest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, latest.TS)
	assert.Empty(t, latest.Data)
}

func TestStatsQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1.5", r.URL.Query().Get("hours"))
		w.Write([]byte(`{"since":1,"until":2,"samples":3,"fields":{}}`))
	})

	stats, err := c.Stats(context.Background(), 1.5)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Samples)
}

func TestErrorStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Health(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Body)
}

func TestArchive(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "append", r.URL.Query().Get("policy"))
			w.Write([]byte(`{"ok":true,"path":"a/b.csv","message":"created","rows":2}`))
		})

		res, err := c.Archive(context.Background(), "append")
		require.NoError(t, err)
		assert.True(t, res.OK)
		require.NotNil(t, res.Path)
		assert.Equal(t, "a/b.csv", *res.Path)
	})

	t.Run("failed run", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"ok":false,"path":null,"message":"conflict","rows":0,"status":409}`))
		})

		res, err := c.Archive(context.Background(), "")
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, 409, res.Status)
	})

	t.Run("unauthorized", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})

		_, err := c.Archive(context.Background(), "")
		require.Error(t, err)
	})
}
