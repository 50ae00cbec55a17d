package main

import (
	"errors"
	"net/http"

	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/archive"
)

// archiveHandler triggers an archival run for the window due now. Failed
// runs are answered with 502 and the result as body.
func (rm *RouteManager) archiveHandler(w http.ResponseWriter, r *http.Request) {
	var policy archive.Policy
	if raw := r.URL.Query().Get("policy"); raw != "" {
		p, err := archive.ParsePolicy(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}

	subject := ""
	if claims := GetClaimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}
	level.Info(rm.logger).Log("msg", "manual archive triggered", "subject", subject, "policy", string(policy))

	res, err := rm.app.archiveNow(r.Context(), policy)
	if err != nil {
		if errors.Is(err, errArchiveDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if !res.OK {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}
