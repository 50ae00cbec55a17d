package models

// ArchiveResult reports the outcome of one archival run. A run never panics or
// returns an error to its trigger; failures are reported with OK=false.
type ArchiveResult struct {
	OK      bool    `json:"ok"`
	Path    *string `json:"path"`
	Message string  `json:"message"`
	Rows    int     `json:"rows"`
	Status  int     `json:"status,omitempty"`
}

// Health status values reported by the liveness endpoint
const (
	HealthOK     = "ok"
	HealthStale  = "stale"
	HealthNoData = "no-data"
)

// HealthReport represents the liveness of the ingestion pipeline
type HealthReport struct {
	Status      string  `json:"status"`
	Now         int64   `json:"now"`
	NowLocal    string  `json:"now_local"`
	LastTS      *int64  `json:"last_ts"`
	LastTSLocal *string `json:"last_ts_local"`
	LagSeconds  *int64  `json:"lag_s"`
	Last        Fields  `json:"last"`
}

// FieldStats holds aggregate statistics of one normalized field over a window
type FieldStats struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
}

// StatsReport holds per-field statistics for a window
type StatsReport struct {
	Since   int64                 `json:"since"`
	Until   int64                 `json:"until"`
	Samples int                   `json:"samples"`
	Fields  map[string]FieldStats `json:"fields"`
}
