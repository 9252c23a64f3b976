package geo

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// Point is a WGS84 position in degrees.
type Point struct {
	Lon float64 `json:"x"`
	Lat float64 `json:"y"`
}

func (p Point) latLng() s2.LatLng { return s2.LatLngFromDegrees(p.Lat, p.Lon) }

// Kind is the geometry type tag carried with a feature.
type Kind string

// Geometry kind constants.
const (
	KindPoint    Kind = "point"
	KindPolyline Kind = "polyline"
	KindPolygon  Kind = "polygon"
)

// Geometry is an opaque shape carried for zoom/highlight. No transforms are applied.
type Geometry struct {
	Kind   Kind    `json:"kind"`
	Points []Point `json:"points"`
}

// Extent returns the bounding rectangle of the geometry.
func (g *Geometry) Extent() Extent {
	if g == nil || len(g.Points) == 0 {
		return EmptyExtent()
	}
	lo, hi := g.Points[0], g.Points[0]
	for _, p := range g.Points[1:] {
		lo.Lon, lo.Lat = math.Min(lo.Lon, p.Lon), math.Min(lo.Lat, p.Lat)
		hi.Lon, hi.Lat = math.Max(hi.Lon, p.Lon), math.Max(hi.Lat, p.Lat)
	}
	return newExtent(lo, hi)
}

// Extent is a lon/lat bounding rectangle backed by an s2.Rect.
// The zero value is empty.
type Extent struct {
	rect   s2.Rect
	lo, hi Point
	set    bool
}

// NewExtent builds an extent from min/max longitude and latitude in degrees.
func NewExtent(xmin, ymin, xmax, ymax float64) (Extent, error) {
	if !ValidateCoordinates(ymin, xmin) || !ValidateCoordinates(ymax, xmax) {
		return Extent{}, fmt.Errorf("extent out of range: (%f,%f)-(%f,%f)", xmin, ymin, xmax, ymax)
	}
	if xmin > xmax || ymin > ymax {
		return Extent{}, fmt.Errorf("extent min exceeds max: (%f,%f)-(%f,%f)", xmin, ymin, xmax, ymax)
	}
	return newExtent(Point{Lon: xmin, Lat: ymin}, Point{Lon: xmax, Lat: ymax}), nil
}

func newExtent(lo, hi Point) Extent {
	return Extent{
		rect: s2.RectFromLatLng(lo.latLng()).AddPoint(hi.latLng()),
		lo:   lo,
		hi:   hi,
		set:  true,
	}
}

// EmptyExtent returns an extent containing nothing. Used as "no area of interest".
func EmptyExtent() Extent {
	return Extent{rect: s2.EmptyRect()}
}

// IsEmpty reports whether the extent covers no area.
func (e Extent) IsEmpty() bool { return !e.set || e.rect.IsEmpty() }

// Contains reports whether p lies inside the extent.
func (e Extent) Contains(p Point) bool {
	return !e.IsEmpty() && e.rect.ContainsLatLng(p.latLng())
}

// Center returns the midpoint of the extent.
func (e Extent) Center() Point {
	c := e.rect.Center()
	return Point{Lon: c.Lng.Degrees(), Lat: c.Lat.Degrees()}
}

// Bounds returns xmin, ymin, xmax, ymax in degrees.
func (e Extent) Bounds() (xmin, ymin, xmax, ymax float64) {
	return e.lo.Lon, e.lo.Lat, e.hi.Lon, e.hi.Lat
}

// String renders the extent as "xmin,ymin,xmax,ymax", the search-extent form geocoders accept.
func (e Extent) String() string {
	if e.IsEmpty() {
		return ""
	}
	xmin, ymin, xmax, ymax := e.Bounds()
	return fmt.Sprintf("%g,%g,%g,%g", xmin, ymin, xmax, ymax)
}

// MarshalJSON renders the extent as [xmin, ymin, xmax, ymax], or null when empty.
func (e Extent) MarshalJSON() ([]byte, error) {
	if e.IsEmpty() {
		return []byte("null"), nil
	}
	xmin, ymin, xmax, ymax := e.Bounds()
	return json.Marshal([4]float64{xmin, ymin, xmax, ymax})
}

// UnmarshalJSON accepts the MarshalJSON form.
func (e *Extent) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = EmptyExtent()
		return nil
	}
	var b [4]float64
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode extent: %w", err)
	}
	ext, err := NewExtent(b[0], b[1], b[2], b[3])
	if err != nil {
		return err
	}
	*e = ext
	return nil
}

// Haversine returns the great-circle distance in meters between two points
// specified by latitude and longitude in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// PlaceSuggestion is a geocoder completion with the token needed to resolve it.
type PlaceSuggestion struct {
	Text  string
	Token string
}

// Place is a geocoded location.
type Place struct {
	Address string  `json:"address"`
	Point   Point   `json:"point"`
	Extent  Extent  `json:"extent"`
	Score   float64 `json:"score"`
}
