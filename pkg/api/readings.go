package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sguter90/weatherlog/pkg/models"
)

// Latest is the most recent normalized reading. TS is zero when the
// server holds no readings yet.
type Latest struct {
	TS      int64                  `json:"ts"`
	TSLocal string                 `json:"ts_local"`
	Data    map[string]interface{} `json:"data"`
}

// Latest fetches the most recent normalized reading
func (c *Client) Latest(ctx context.Context) (*Latest, error) {
	var latest Latest
	if err := c.getJSON(ctx, http.MethodGet, "/api/latest", &latest); err != nil {
		return nil, err
	}
	return &latest, nil
}

// Stats fetches per-field statistics over the last hours
func (c *Client) Stats(ctx context.Context, hours float64) (*models.StatsReport, error) {
	path := "/api/stats"
	if hours > 0 {
		path += "?hours=" + url.QueryEscape(strconv.FormatFloat(hours, 'f', -1, 64))
	}

	var stats models.StatsReport
	if err := c.getJSON(ctx, http.MethodGet, path, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Archive triggers an archival run on the server. An empty policy uses the
// server default.
func (c *Client) Archive(ctx context.Context, policy string) (*models.ArchiveResult, error) {
	path := "/api/archive"
	if policy != "" {
		path += "?policy=" + url.QueryEscape(policy)
	}

	var result models.ArchiveResult
	err := c.getJSON(ctx, http.MethodPost, path, &result)
	if err == nil {
		return &result, nil
	}

	// failed runs are reported with 502 and the result as body
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadGateway {
		if json.Unmarshal([]byte(apiErr.Body), &result) == nil {
			return &result, nil
		}
	}
	return nil, fmt.Errorf("archive: %w", err)
}
