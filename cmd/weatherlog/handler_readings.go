package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/models"
)

// exportFilename is the attachment name of the CSV export
const exportFilename = "ecowitt_full.csv"

// parseHistoryQuery reads the optional hours parameter
func parseHistoryQuery(r *http.Request) (models.HistoryQuery, error) {
	q := models.HistoryQuery{}

	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return q, nil
	}

	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(hours) {
		return q, errors.New("hours must be a number")
	}
	q.Hours = hours
	q.HasHours = true

	return q, q.Validate()
}

// storageFailure logs err and answers with a structured 500
func (rm *RouteManager) storageFailure(w http.ResponseWriter, op string, err error) {
	level.Error(rm.logger).Log("msg", "read failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// latestHandler returns the newest normalized reading, or {} if there is none
func (rm *RouteManager) latestHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := rm.app.service.Latest(r.Context())
	if err != nil {
		rm.storageFailure(w, "latest", err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// latestRawHandler returns the newest stored payload, or {} if there is none
func (rm *RouteManager) latestRawHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := rm.app.service.LatestRaw(r.Context())
	if err != nil {
		rm.storageFailure(w, "latest_raw", err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (rm *RouteManager) historyHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := rm.app.service.History(r.Context(), q)
	if err != nil {
		rm.storageFailure(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (rm *RouteManager) historyRawHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snaps, err := rm.app.service.HistoryRaw(r.Context(), q)
	if err != nil {
		rm.storageFailure(w, "history_raw", err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// exportHandler streams the window as CSV. Without hours the whole log is
// exported.
func (rm *RouteManager) exportHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	table, err := rm.app.service.Export(r.Context(), q)
	if err != nil {
		rm.storageFailure(w, "export", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := table.WriteTo(w); err != nil {
		level.Debug(rm.logger).Log("msg", "export interrupted", "err", err)
	}
}

func (rm *RouteManager) statsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := rm.app.service.Stats(r.Context(), q)
	if err != nil {
		rm.storageFailure(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
