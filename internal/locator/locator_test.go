package locator

import (
	"errors"
	"math"
	"net/url"
	"strings"
	"testing"

	"github.com/pavelanni/careercompass/internal/model"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng string
		want     Point
	}{
		{"valid", "28.6139", "77.2090", Point{Lat: 28.6139, Lng: 77.2090}},
		{"missing", "", "", DefaultCenter},
		{"garbage", "north", "77", DefaultCenter},
		{"out of range", "95", "10", DefaultCenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePoint(tt.lat, tt.lng); got != tt.want {
				t.Errorf("ParsePoint(%q, %q) = %+v, want %+v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	l := New("")
	var ce *model.ConfigurationError
	if !errors.As(l.Configured(), &ce) {
		t.Fatalf("Configured() = %v, want ConfigurationError", l.Configured())
	}
	if _, err := l.Nearby(DefaultCenter); !errors.As(err, &ce) {
		t.Errorf("Nearby error = %v, want ConfigurationError", err)
	}
}

func TestNearby(t *testing.T) {
	l := New("k123")
	m, err := l.Nearby(Point{Lat: 10, Lng: 20})
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(m.Colleges) != 4 {
		t.Fatalf("colleges = %d, want 4", len(m.Colleges))
	}
	if m.Colleges[2].Name != "MIT" || math.Abs(m.Colleges[2].Lat-10.01) > 1e-9 {
		t.Errorf("college = %+v", m.Colleges[2])
	}

	u, err := url.Parse(m.URL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()
	if q.Get("apiKey") != "k123" {
		t.Errorf("apiKey = %q", q.Get("apiKey"))
	}
	if q.Get("center") != "lonlat:20.000000,10.000000" {
		t.Errorf("center = %q", q.Get("center"))
	}
	if got := strings.Count(q.Get("marker"), "lonlat:"); got != 4 {
		t.Errorf("markers = %d, want 4", got)
	}
}
