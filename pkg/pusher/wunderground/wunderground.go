// Package wunderground accepts the legacy Weather Underground upload protocol
// that many consoles still speak next to (or instead of) Ecowitt.
package wunderground

import (
	"net/http"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/pusher"
)

// Endpoint is the fixed path consoles upload to
const Endpoint = "/weatherstation/updateweatherstation.php"

// Pusher implements the Wunderground protocol
type Pusher struct {
	StationID  string
	StationKey string
	Required   bool
}

// NewPusher creates a Wunderground pusher checking the ID/PASSWORD pair
func NewPusher(stationID, stationKey string, required bool) *Pusher {
	return &Pusher{StationID: stationID, StationKey: stationKey, Required: required}
}

func (p *Pusher) GetEndpoint() string {
	return Endpoint
}

func (p *Pusher) GetStationType() string {
	return "wunderground"
}

// Authenticate compares ID and PASSWORD with the configured station
// credentials. Each is only compared when present, unless Required is set.
func (p *Pusher) Authenticate(fields models.Fields) error {
	if err := pusher.CheckPasskey(fields, "ID", p.StationID, p.Required); err != nil {
		return err
	}
	return pusher.CheckPasskey(fields, "PASSWORD", p.StationKey, p.Required)
}

// Acknowledge answers with the literal "success" consoles parse
func (p *Pusher) Acknowledge(w http.ResponseWriter, reading models.RawReading) error {
	return pusher.WriteText(w, http.StatusOK, "success")
}

func (p *Pusher) Reject(w http.ResponseWriter, err error) {
	pusher.WriteText(w, http.StatusUnauthorized, "unauthorized")
}
