package main

import (
	"net/http"
)

// healthHandler reports whether stations are still uploading
func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	report, err := rm.app.service.Health(r.Context())
	if err != nil {
		rm.storageFailure(w, "health", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
