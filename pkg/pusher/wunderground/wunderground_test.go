package wunderground

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/pusher"
)

func TestPusher_Authenticate(t *testing.T) {
	testCases := []struct {
		name     string
		pusher   *Pusher
		params   models.Fields
		expected error
	}{
		{
			name:     "Matching credentials",
			pusher:   NewPusher("IQUITO42", "key", false),
			params:   models.Fields{"ID": "IQUITO42", "PASSWORD": "key", "tempf": "70"},
			expected: nil,
		},
		{
			name:     "Wrong password",
			pusher:   NewPusher("IQUITO42", "key", false),
			params:   models.Fields{"ID": "IQUITO42", "PASSWORD": "nope"},
			expected: pusher.ErrUnauthorized,
		},
		{
			name:     "Wrong station",
			pusher:   NewPusher("IQUITO42", "key", false),
			params:   models.Fields{"ID": "OTHER", "PASSWORD": "key"},
			expected: pusher.ErrUnauthorized,
		},
		{
			name:     "Credentials missing, optional",
			pusher:   NewPusher("IQUITO42", "key", false),
			params:   models.Fields{"tempf": "70"},
			expected: nil,
		},
		{
			name:     "Credentials missing, required",
			pusher:   NewPusher("IQUITO42", "key", true),
			params:   models.Fields{"tempf": "70"},
			expected: pusher.ErrUnauthorized,
		},
		{
			name:     "Required without configured key",
			pusher:   NewPusher("IQUITO42", "", true),
			params:   models.Fields{"ID": "IQUITO42", "PASSWORD": "guess"},
			expected: pusher.ErrUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pusher.Authenticate(tc.params)
			if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestPusher_Acknowledge(t *testing.T) {
	p := NewPusher("", "", false)
	rec := httptest.NewRecorder()

	if err := p.Acknowledge(rec, models.RawReading{}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Body.String() != "success" {
		t.Errorf("Expected body success, got %q", rec.Body.String())
	}
	if p.GetEndpoint() != "/weatherstation/updateweatherstation.php" {
		t.Errorf("Unexpected endpoint %s", p.GetEndpoint())
	}
}
