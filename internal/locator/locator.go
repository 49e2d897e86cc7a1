// Package locator builds static map links for colleges near a student.
package locator

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pavelanni/careercompass/internal/model"
)

const staticMapURL = "https://maps.geoapify.com/v1/staticmap"

// DefaultCenter is used when the caller has no usable location.
var DefaultCenter = Point{Lat: 37.7749, Lng: -122.4194}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// College is a marker placed relative to the map center.
type College struct {
	Name string `json:"name"`
	Point
}

// Placeholder colleges, offset from the center in degrees.
var nearby = []College{
	{Name: "Harvard University", Point: Point{Lat: 0.02, Lng: -0.02}},
	{Name: "Stanford University", Point: Point{Lat: -0.015, Lng: 0.025}},
	{Name: "MIT", Point: Point{Lat: 0.01, Lng: 0.01}},
	{Name: "UC Berkeley", Point: Point{Lat: -0.01, Lng: -0.025}},
}

// Map is a rendered static map link and the colleges it shows.
type Map struct {
	URL      string    `json:"url"`
	Center   Point     `json:"center"`
	Colleges []College `json:"colleges"`
}

// Locator is disabled when constructed without a maps key.
type Locator struct {
	apiKey string
}

// New creates a locator.
func New(apiKey string) *Locator {
	return &Locator{apiKey: apiKey}
}

// Configured returns a ConfigurationError when no maps key was supplied.
func (l *Locator) Configured() error {
	if l.apiKey == "" {
		return &model.ConfigurationError{Key: "maps-key", Feature: "college locator"}
	}
	return nil
}

// ParsePoint reads a coordinate from query values. Missing, malformed, or
// out-of-range input yields DefaultCenter.
func ParsePoint(lat, lng string) Point {
	la, err1 := strconv.ParseFloat(lat, 64)
	ln, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil || la < -90 || la > 90 || ln < -180 || ln > 180 {
		return DefaultCenter
	}
	return Point{Lat: la, Lng: ln}
}

// Nearby returns a map centered on c with the colleges around it.
func (l *Locator) Nearby(c Point) (Map, error) {
	if err := l.Configured(); err != nil {
		return Map{}, err
	}

	colleges := make([]College, len(nearby))
	markers := make([]string, len(nearby))
	for i, n := range nearby {
		p := Point{Lat: c.Lat + n.Lat, Lng: c.Lng + n.Lng}
		colleges[i] = College{Name: n.Name, Point: p}
		markers[i] = fmt.Sprintf("lonlat:%s,%s;color:#ff0000;size:medium", coord(p.Lng), coord(p.Lat))
	}

	q := url.Values{}
	q.Set("style", "osm-carto")
	q.Set("width", "600")
	q.Set("height", "400")
	q.Set("center", fmt.Sprintf("lonlat:%s,%s", coord(c.Lng), coord(c.Lat)))
	q.Set("zoom", "14")
	q.Set("marker", strings.Join(markers, "|"))
	q.Set("apiKey", l.apiKey)

	return Map{URL: staticMapURL + "?" + q.Encode(), Center: c, Colleges: colleges}, nil
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
