package feature

import (
	"strings"

	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
)

// Feature is a single geospatial record: identifier, attributes, optional geometry.
type Feature struct {
	id         string
	attributes map[string]string
	geometry   *geo.Geometry
}

// New creates a Feature. geometry may be nil (attribute-only records).
func New(id string, attributes map[string]string, geometry *geo.Geometry) *Feature {
	if attributes == nil {
		attributes = map[string]string{}
	}
	return &Feature{id: id, attributes: attributes, geometry: geometry}
}

// ID returns the stable feature identifier used for re-query.
func (f *Feature) ID() string { return f.id }

// Attributes returns the attribute map. Callers must not modify it.
func (f *Feature) Attributes() map[string]string { return f.attributes }

// Geometry returns the shape, or nil for attribute-only records.
func (f *Feature) Geometry() *geo.Geometry { return f.geometry }

// HasGeometry reports whether the feature carries a shape.
func (f *Feature) HasGeometry() bool { return f.geometry != nil && len(f.geometry.Points) > 0 }

// Value returns the attribute value for field. Lookup falls back to a
// case-insensitive match because packaged and hosted schemas disagree on case.
func (f *Feature) Value(field string) (string, bool) {
	if v, ok := f.attributes[field]; ok {
		return v, true
	}
	for k, v := range f.attributes {
		if strings.EqualFold(k, field) {
			return v, true
		}
	}
	return "", false
}
