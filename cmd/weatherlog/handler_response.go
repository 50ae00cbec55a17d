package main

import (
	"encoding/json"
	"net/http"

	"github.com/sguter90/weatherlog/pkg/pusher"
)

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the structured failure body {ok:false, message}
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"ok":      false,
		"message": message,
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	pusher.WriteText(w, http.StatusNotFound, "not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	pusher.WriteText(w, http.StatusMethodNotAllowed, "method not allowed")
}

// rootHandler answers with a short banner
func (rm *RouteManager) rootHandler(w http.ResponseWriter, r *http.Request) {
	pusher.WriteText(w, http.StatusOK, "weatherlog api ready")
}
