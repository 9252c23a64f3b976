package result

import (
	"strings"

	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
)

// Separator joins the parts of a formatted suggestion.
const Separator = " • "

// Item is a single search hit handed back for zoom and highlight.
// Feature may be nil when the entry came from an attribute-only warm-up
// and the record has since been collected.
type Item struct {
	Layer       string
	Field       string
	FeatureID   string
	DisplayText string
	Feature     *feature.Feature
}

// Geometry returns the item's shape, or nil.
func (i Item) Geometry() *geo.Geometry {
	if i.Feature == nil {
		return nil
	}
	return i.Feature.Geometry()
}

// Suggestion is a candidate completion with enough context to skip a
// second query when the user picks it.
type Suggestion struct {
	Mode        mode.Mode     `json:"mode"`
	Layer       string        `json:"layer,omitempty"`
	Field       string        `json:"field,omitempty"`
	DisplayText string        `json:"text"`
	Formatted   string        `json:"formatted"`
	Geometry    *geo.Geometry `json:"geometry,omitempty"`
	FeatureID   string        `json:"feature_id,omitempty"`
	// Token is the geocoder handle for location suggestions.
	Token string `json:"token,omitempty"`
}

// NewAssetSuggestion builds an asset-mode suggestion from a search hit.
func NewAssetSuggestion(it Item) Suggestion {
	return Suggestion{
		Mode:        mode.Asset,
		Layer:       it.Layer,
		Field:       it.Field,
		DisplayText: it.DisplayText,
		Formatted:   Format(it.Layer, it.Field, it.DisplayText),
		Geometry:    it.Geometry(),
		FeatureID:   it.FeatureID,
	}
}

// NewLocationSuggestion builds a location-mode suggestion.
func NewLocationSuggestion(p geo.PlaceSuggestion) Suggestion {
	return Suggestion{
		Mode:        mode.Location,
		DisplayText: p.Text,
		Formatted:   p.Text,
		Token:       p.Token,
	}
}

// HasGeometry reports whether the suggestion can be used without a further query.
func (s Suggestion) HasGeometry() bool {
	return s.Geometry != nil && len(s.Geometry.Points) > 0
}

// Format renders "Layer • Field • Value", skipping empty parts.
func Format(layer, field, value string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{layer, field, value} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, Separator)
}
