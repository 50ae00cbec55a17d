// Package generic accepts arbitrary JSON, form or query payloads and answers
// with a JSON acknowledgment. It is used by scripts and bridges rather than
// by station firmware.
package generic

import (
	"encoding/json"
	"net/http"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/pusher"
)

// Endpoint is the generic ingestion path
const Endpoint = "/api/ingest"

// Ack is the JSON acknowledgment body
type Ack struct {
	OK     bool          `json:"ok"`
	Saved  bool          `json:"saved"`
	TS     int64         `json:"ts"`
	Params models.Fields `json:"params"`
}

// Pusher implements the generic ingestion protocol
type Pusher struct {
	Passkey  string
	Required bool
}

// NewPusher creates a generic pusher sharing the station passkey
func NewPusher(passkey string, required bool) *Pusher {
	return &Pusher{Passkey: passkey, Required: required}
}

func (p *Pusher) GetEndpoint() string {
	return Endpoint
}

func (p *Pusher) GetStationType() string {
	return "generic"
}

func (p *Pusher) Authenticate(fields models.Fields) error {
	return pusher.CheckPasskey(fields, "passkey", p.Passkey, p.Required)
}

func (p *Pusher) Acknowledge(w http.ResponseWriter, reading models.RawReading) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(Ack{
		OK:     true,
		Saved:  true,
		TS:     reading.CapturedAt,
		Params: reading.Fields,
	})
}

func (p *Pusher) Reject(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":      false,
		"message": err.Error(),
	})
}
