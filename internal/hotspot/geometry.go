package hotspot

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Point is a WGS 84 coordinate in degrees. All spatial math in this package
// treats degrees as a flat Euclidean plane.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orb returns the point in orb's (x=lon, y=lat) order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point back to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

func (p Point) finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// Incident is a crime location plus the attributes used for attribution
// statistics. A zero OccurredAt means the timestamp is unknown.
type Incident struct {
	Location   Point
	Category   string
	OccurredAt time.Time
}

// Hour returns the hour of day the incident occurred.
func (i Incident) Hour() (int, bool) {
	if i.OccurredAt.IsZero() {
		return 0, false
	}
	return i.OccurredAt.Hour(), true
}

// Weekend reports whether the incident fell on a Saturday or Sunday.
func (i Incident) Weekend() (bool, bool) {
	if i.OccurredAt.IsZero() {
		return false, false
	}
	wd := i.OccurredAt.Weekday()
	return wd == time.Saturday || wd == time.Sunday, true
}

// Season returns the meteorological season of the incident.
func (i Incident) Season() (string, bool) {
	if i.OccurredAt.IsZero() {
		return "", false
	}
	return SeasonOf(i.OccurredAt.Month()), true
}

// SeasonOf maps a calendar month to Winter, Spring, Summer or Fall.
func SeasonOf(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "Winter"
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	default:
		return "Fall"
	}
}

// PointSet is an ordered, read-only collection of incidents.
type PointSet []Incident

// Locations returns the coordinates of every incident, in order.
func (ps PointSet) Locations() []Point {
	out := make([]Point, len(ps))
	for i, inc := range ps {
		out[i] = inc.Location
	}
	return out
}
