package result

import (
	"testing"

	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		layer, field, value string
		want                string
	}{
		{"ssGravityMain", "AssetID", "PIPE-1042", "ssGravityMain • AssetID • PIPE-1042"},
		{"ssGravityMain", "", "PIPE-1042", "ssGravityMain • PIPE-1042"},
		{"", "", "PIPE-1042", "PIPE-1042"},
	}
	for _, tc := range tests {
		if got := Format(tc.layer, tc.field, tc.value); got != tc.want {
			t.Errorf("Format(%q, %q, %q) = %q, want %q", tc.layer, tc.field, tc.value, got, tc.want)
		}
	}
}

func TestNewAssetSuggestion_CarriesGeometry(t *testing.T) {
	g := &geo.Geometry{Kind: geo.KindPoint, Points: []geo.Point{{Lon: 10, Lat: 20}}}
	it := Item{
		Layer:       "ssGravityMain",
		Field:       "AssetID",
		FeatureID:   "7",
		DisplayText: "PIPE-1042",
		Feature:     feature.New("7", nil, g),
	}

	s := NewAssetSuggestion(it)
	if s.Mode != mode.Asset {
		t.Errorf("mode = %q", s.Mode)
	}
	if !s.HasGeometry() {
		t.Fatal("expected cached geometry")
	}
	if s.Formatted != "ssGravityMain • AssetID • PIPE-1042" {
		t.Errorf("formatted = %q", s.Formatted)
	}
	if s.FeatureID != "7" {
		t.Errorf("feature id = %q", s.FeatureID)
	}
}

func TestNewAssetSuggestion_NoFeature(t *testing.T) {
	s := NewAssetSuggestion(Item{Layer: "L", DisplayText: "v"})
	if s.HasGeometry() {
		t.Error("suggestion without feature should have no geometry")
	}
}

func TestNewLocationSuggestion(t *testing.T) {
	s := NewLocationSuggestion(geo.PlaceSuggestion{Text: "1 Main St", Token: "abc"})
	if s.Mode != mode.Location || s.Token != "abc" || s.Formatted != "1 Main St" {
		t.Errorf("unexpected suggestion: %+v", s)
	}
}
