package api

import (
	"context"
	"net/http"

	"github.com/sguter90/weatherlog/pkg/models"
)

// Health fetches the ingestion liveness report
func (c *Client) Health(ctx context.Context) (*models.HealthReport, error) {
	var health models.HealthReport
	if err := c.getJSON(ctx, http.MethodGet, "/api/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}
