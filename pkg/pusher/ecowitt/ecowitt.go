package ecowitt

import (
	"net/http"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/pusher"
)

// DefaultEndpoint is the custom-server path configured on the gateway
const DefaultEndpoint = "/api/ecowitt"

// Pusher implements the Ecowitt custom upload protocol
type Pusher struct {
	Endpoint       string
	Passkey        string
	RequirePasskey bool
}

// NewPusher creates an Ecowitt pusher checking the given passkey
func NewPusher(passkey string, required bool) *Pusher {
	return &Pusher{
		Endpoint:       DefaultEndpoint,
		Passkey:        passkey,
		RequirePasskey: required,
	}
}

// GetEndpoint returns the endpoint path for Ecowitt stations
func (p *Pusher) GetEndpoint() string {
	if p.Endpoint == "" {
		return DefaultEndpoint
	}
	return p.Endpoint
}

// GetStationType returns the station type identifier
func (p *Pusher) GetStationType() string {
	return "ecowitt"
}

// Authenticate checks the PASSKEY field when the payload carries one
func (p *Pusher) Authenticate(fields models.Fields) error {
	return pusher.CheckPasskey(fields, "passkey", p.Passkey, p.RequirePasskey)
}

// Acknowledge answers with the literal "OK" gateways expect
func (p *Pusher) Acknowledge(w http.ResponseWriter, reading models.RawReading) error {
	return pusher.WriteText(w, http.StatusOK, "OK")
}

// Reject answers a bad passkey
func (p *Pusher) Reject(w http.ResponseWriter, err error) {
	pusher.WriteText(w, http.StatusUnauthorized, "bad passkey")
}
