package pusher

import (
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/sguter90/weatherlog/pkg/models"
)

var (
	// ErrUnauthorized is returned when a payload carries wrong credentials, or
	// none while credentials are required.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnsupportedMediaType is returned for POST bodies of an unknown content type
	ErrUnsupportedMediaType = errors.New("unsupported content-type")
)

// Pusher defines the interface for all weather station upload protocols
type Pusher interface {
	// GetEndpoint returns the HTTP endpoint path for this pusher
	GetEndpoint() string

	// GetStationType returns the protocol identifier
	GetStationType() string

	// Authenticate checks the shared secret carried by the payload, if any
	Authenticate(fields models.Fields) error

	// Acknowledge writes the success response the station firmware expects.
	// The body is part of the wire contract and must not change.
	Acknowledge(w http.ResponseWriter, reading models.RawReading) error

	// Reject writes the response for a payload that failed Authenticate
	Reject(w http.ResponseWriter, err error)
}

// Registry holds all registered pushers
type Registry struct {
	mu      sync.RWMutex
	pushers map[string]Pusher
}

// NewRegistry creates a new pusher registry
func NewRegistry() *Registry {
	return &Registry{
		pushers: make(map[string]Pusher),
	}
}

// Register adds a pusher to the registry
func (r *Registry) Register(p Pusher) {
	if p == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pushers[p.GetStationType()] = p
}

// Get retrieves a pusher by station type
func (r *Registry) Get(stationType string) (Pusher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pushers[stationType]
	return p, ok
}

// All returns all registered pushers ordered by station type
func (r *Registry) All() []Pusher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pushers := make([]Pusher, 0, len(r.pushers))
	for _, p := range r.pushers {
		pushers = append(pushers, p)
	}
	sort.Slice(pushers, func(i, j int) bool {
		return pushers[i].GetStationType() < pushers[j].GetStationType()
	})
	return pushers
}

// WriteText writes a plain text response
func WriteText(w http.ResponseWriter, status int, body string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	return err
}
