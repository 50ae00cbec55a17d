package ecowitt

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/pusher"
)

func TestPusher_GetEndpoint(t *testing.T) {
	p := NewPusher("", false)

	expected := "/api/ecowitt"
	if p.GetEndpoint() != expected {
		t.Errorf("Expected endpoint %s, got %s", expected, p.GetEndpoint())
	}

	p.Endpoint = "/data/report"
	if p.GetEndpoint() != "/data/report" {
		t.Errorf("Expected endpoint /data/report, got %s", p.GetEndpoint())
	}
}

func TestPusher_GetStationType(t *testing.T) {
	p := &Pusher{}

	expected := "ecowitt"
	if p.GetStationType() != expected {
		t.Errorf("Expected station type %s, got %s", expected, p.GetStationType())
	}
}

func TestPusher_Authenticate(t *testing.T) {
	testCases := []struct {
		name     string
		pusher   *Pusher
		params   models.Fields
		expected error
	}{
		{
			name:     "Gateway PASSKEY matches",
			pusher:   NewPusher("ABC123", false),
			params:   models.Fields{"PASSKEY": "ABC123", "stationtype": "EasyWeatherV1.6.4"},
			expected: nil,
		},
		{
			name:     "Wrong passkey",
			pusher:   NewPusher("ABC123", false),
			params:   models.Fields{"passkey": "XYZ789"},
			expected: pusher.ErrUnauthorized,
		},
		{
			name:     "No passkey in payload",
			pusher:   NewPusher("ABC123", false),
			params:   models.Fields{"tempf": "72.5"},
			expected: nil,
		},
		{
			name:     "No passkey in payload but required",
			pusher:   NewPusher("ABC123", true),
			params:   models.Fields{"tempf": "72.5"},
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
	p := NewPusher("", false)
	rec := httptest.NewRecorder()

	if err := p.Acknowledge(rec, models.RawReading{CapturedAt: 1}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != 200 {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Expected body OK, got %q", rec.Body.String())
	}
}

func TestPusher_Reject(t *testing.T) {
	p := NewPusher("ABC123", false)
	rec := httptest.NewRecorder()

	p.Reject(rec, pusher.ErrUnauthorized)

	if rec.Code != 401 {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
	if rec.Body.String() != "bad passkey" {
		t.Errorf("Expected body 'bad passkey', got %q", rec.Body.String())
	}
}
