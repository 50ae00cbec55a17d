package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sguter90/weatherlog/pkg/archive"
	"github.com/sguter90/weatherlog/pkg/clock"
	"github.com/sguter90/weatherlog/pkg/config"
	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/storage"
)

const testSecret = "test-secret"

func newTestConfig() *config.Config {
	return &config.Config{
		ServerPort:      "8059",
		AllowedOrigins:  []string{"http://localhost:3000", "https://wx.example.com"},
		LogLevel:        "info",
		EcowittPasskey:  "pk-123",
		StationID:       "ST1",
		StationKey:      "pw",
		StorageDriver:   config.DriverMemory,
		StoreTimeout:    time.Second,
		HealthInterval:  time.Second,
		Timezone:        "UTC",
		StaleThreshold:  120 * time.Second,
		RedactFields:    []string{"passkey", "password"},
		ArchivePolicy:   config.PolicyPartitionOnce,
		ArchiveInterval: time.Hour,
		ArchiveLookback: time.Hour,
		ArchivePrefix:   "archives/ecowitt",
		ArchiveFile:     "ecowitt_history.csv",
		ArchiveStore:    config.StoreFS,
		ArchiveDir:      "/archive",
		ArchiveTimeout:  5 * time.Second,
		GitHubBranch:    "main",
		GitHubAPIURL:    "https://api.github.com",
		JWTSecret:       testSecret,
	}
}

type testEnv struct {
	rm    *RouteManager
	clock clock.Mock
	store *archive.FSStore
	log   *storage.MemoryLog
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	clk := clock.NewMock(time.Date(2024, 6, 1, 13, 30, 0, 0, time.UTC))
	store := archive.NewFSStore(afero.NewMemMapFs(), cfg.ArchiveDir)
	readings := storage.NewMemoryLog(0)
	a := assemble(cfg, kitlog.NewNopLogger(), clk, readings, store, archive.PartitionOnce)

	rm := NewRouteManager(a, newPusherRegistry(cfg))
	rm.Setup()

	return &testEnv{rm: rm, clock: clk, store: store, log: readings}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.rm.Router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestEcowittUpload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm("/api/ecowitt", url.Values{"PASSKEY": {"pk-123"}, "tempf": {"68"}, "humidity": {"40"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = env.get("/api/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var latest struct {
		TS      int64                  `json:"ts"`
		TSLocal string                 `json:"ts_local"`
		Data    map[string]interface{} `json:"data"`
	}
	decode(t, rec, &latest)
	assert.Equal(t, env.clock.Now().UnixMilli(), latest.TS)
	assert.Equal(t, "01/06/2024 13:30", latest.TSLocal)
	assert.InDelta(t, 20.0, latest.Data["outdoor_temp_c"], 0.01)
}

func TestEcowittBadPasskey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm("/api/ecowitt", url.Values{"PASSKEY": {"wrong"}, "tempf": {"68"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.get("/api/latest")
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestUnsupportedMediaType(t *testing.T) {
	tests := []struct {
		contentType string
		body        string
	}{
		{"text/plain", "PASSKEY=pk-123&tempf=68"},
		{"application/xml", "<xml/>"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			env := newTestEnv(t)

			req := httptest.NewRequest(http.MethodPost, "/api/ecowitt", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := env.do(req)

			assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
			assert.Equal(t, 0, env.log.Len())

			rec = env.get("/api/latest")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{}`, rec.Body.String())
		})
	}
}

func TestWundergroundUpload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/weatherstation/updateweatherstation.php?ID=ST1&PASSWORD=pw&tempf=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())

	rec = env.get("/weatherstation/updateweatherstation.php?ID=ST1&PASSWORD=nope&tempf=50")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGenericUpload(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"tempf": 50, "note": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ack map[string]interface{}
	decode(t, rec, &ack)
	assert.Equal(t, true, ack["ok"])
	assert.Equal(t, true, ack["saved"])
	assert.EqualValues(t, env.clock.Now().UnixMilli(), ack["ts"])
}

func TestRawEndpointsRedactSecrets(t *testing.T) {
	env := newTestEnv(t)

	env.postForm("/api/ecowitt", url.Values{"PASSKEY": {"pk-123"}, "tempf": {"68"}})

	rec := env.get("/api/latest_raw")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pk-123")
	assert.Contains(t, rec.Body.String(), `"tempf"`)

	rec = env.get("/api/history_raw?hours=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pk-123")
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)

	env.postForm("/api/ecowitt", url.Values{"tempf": {"68"}})
	env.clock.Add(time.Minute)
	env.postForm("/api/ecowitt", url.Values{"tempf": {"50"}})

	rec := env.get("/api/history?hours=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []map[string]interface{}
	decode(t, rec, &points)
	require.Len(t, points, 2)
	assert.InDelta(t, 20.0, points[0]["outdoor_temp_c"], 0.01)
	assert.InDelta(t, 10.0, points[1]["outdoor_temp_c"], 0.01)
	assert.Contains(t, points[0], "t_local")

	rec = env.get("/api/history?hours=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.get("/api/history?hours=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.get("/api/history?hours=NaN")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)

	env.postForm("/api/ecowitt", url.Values{"PASSKEY": {"pk-123"}, "tempf": {"68"}})

	rec := env.get("/api/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="ecowitt_full.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"ts","ts_local"`), lines[0])
	assert.NotContains(t, rec.Body.String(), "pk-123")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var report models.HealthReport

	rec := env.get("/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	decode(t, rec, &report)
	assert.Equal(t, models.HealthNoData, report.Status)

	env.postForm("/api/ecowitt", url.Values{"tempf": {"68"}})

	env.clock.Add(90 * time.Second)
	decode(t, env.get("/api/health"), &report)
	assert.Equal(t, models.HealthOK, report.Status)

	env.clock.Add(40 * time.Second)
	decode(t, env.get("/api/health"), &report)
	assert.Equal(t, models.HealthStale, report.Status)
	require.NotNil(t, report.LagSeconds)
	assert.Equal(t, int64(130), *report.LagSeconds)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	env.postForm("/api/ecowitt", url.Values{"tempf": {"50"}})
	env.clock.Add(time.Minute)
	env.postForm("/api/ecowitt", url.Values{"tempf": {"68"}})

	var stats models.StatsReport
	rec := env.get("/api/stats?hours=1")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &stats)

	assert.Equal(t, 2, stats.Samples)
	temp, ok := stats.Fields["outdoor_temp_c"]
	require.True(t, ok)
	assert.Equal(t, 2, temp.Count)
	assert.InDelta(t, 10.0, *temp.Min, 0.01)
	assert.InDelta(t, 20.0, *temp.Max, 0.01)
	assert.InDelta(t, 15.0, *temp.Avg, 0.01)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://wx.example.com")
	rec := env.do(req)
	assert.Equal(t, "https://wx.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = env.do(req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/history", nil)
	req.Header.Set("Origin", "https://wx.example.com")
	rec = env.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weatherlog api ready", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec = env.do(req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
}

func archiveRequest(t *testing.T, query string) *http.Request {
	t.Helper()
	token, _, err := GenerateJWT(testSecret, "ops", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/archive"+query, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestArchiveEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.postForm("/api/ecowitt", url.Values{"tempf": {"68"}})
	env.clock.Set(time.Date(2024, 6, 1, 14, 25, 0, 0, time.UTC))

	rec := env.do(archiveRequest(t, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.ArchiveResult
	decode(t, rec, &res)
	assert.True(t, res.OK)
	require.NotNil(t, res.Path)
	assert.Equal(t, "archives/ecowitt/2024/06/01/1300.csv", *res.Path)
	assert.Equal(t, 1, res.Rows)

	content, err := env.store.GetContent(context.Background(), *res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content.Data), `"ts","ts_local"`)

	rec = env.do(archiveRequest(t, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.True(t, res.OK)
	assert.Equal(t, 0, res.Rows)
}

func TestArchiveEndpointPolicyOverride(t *testing.T) {
	env := newTestEnv(t)

	env.postForm("/api/ecowitt", url.Values{"tempf": {"68"}})
	env.clock.Add(time.Minute)

	rec := env.do(archiveRequest(t, "?policy=append"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.ArchiveResult
	decode(t, rec, &res)
	require.NotNil(t, res.Path)
	assert.Equal(t, "archives/ecowitt/ecowitt_history.csv", *res.Path)

	rec = env.do(archiveRequest(t, "?policy=weekly"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveEndpointAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/archive", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/archive", nil)
	req.Header.Set("Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	forged, _, err := GenerateJWT("other-secret", "ops", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/archive", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	disabled := newTestEnv(t, func(c *config.Config) { c.JWTSecret = "" })
	assert.Equal(t, http.StatusServiceUnavailable, disabled.do(archiveRequest(t, "")).Code)
}

func TestArchiveEndpointWithoutStore(t *testing.T) {
	cfg := newTestConfig()
	clk := clock.NewMock(time.Date(2024, 6, 1, 13, 30, 0, 0, time.UTC))
	a := assemble(cfg, kitlog.NewNopLogger(), clk, storage.NewMemoryLog(0), nil, archive.PartitionOnce)
	rm := NewRouteManager(a, newPusherRegistry(cfg))
	rm.Setup()

	rec := httptest.NewRecorder()
	rm.Router.ServeHTTP(rec, archiveRequest(t, ""))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
