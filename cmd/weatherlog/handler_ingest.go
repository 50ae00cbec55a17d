package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/metrics"
	"github.com/sguter90/weatherlog/pkg/pusher"
)

// ingestHandler handles uploads from stations speaking protocol p
func (rm *RouteManager) ingestHandler(p pusher.Pusher) http.HandlerFunc {
	stationType := p.GetStationType()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		fields, err := pusher.ParsePayload(r)
		if err != nil {
			metrics.IngestRejectedCounter.WithLabelValues(stationType, "media_type").Inc()
			pusher.WriteText(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}

		if err := p.Authenticate(fields); err != nil {
			metrics.IngestRejectedCounter.WithLabelValues(stationType, "unauthorized").Inc()
			level.Warn(rm.logger).Log("msg", "upload rejected", "station_type", stationType, "remote", r.RemoteAddr, "err", err)
			p.Reject(w, err)
			return
		}

		reading, err := rm.app.service.Ingest(r.Context(), stationType, fields)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				level.Debug(rm.logger).Log("msg", "client went away before the upload was stored", "station_type", stationType)
				return
			}
			level.Error(rm.logger).Log("msg", "failed to store upload", "station_type", stationType, "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		level.Debug(rm.logger).Log("msg", "upload stored", "station_type", stationType, "ts", reading.CapturedAt, "fields", len(reading.Fields))

		if err := p.Acknowledge(w, reading); err != nil {
			level.Debug(rm.logger).Log("msg", "failed to write acknowledgment", "station_type", stationType, "err", err)
		}
	}
}
