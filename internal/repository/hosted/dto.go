package hosted

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
)

const (
	keyPrefix = "geosuggest:svc:"

	fieldID       = "__id"
	fieldGeometry = "__geometry"

	metaName   = "name"
	metaTitle  = "title"
	metaTable  = "table"
	metaFields = "fields"
)

// Key layout:
//
//	geosuggest:svc:<service>:meta:<layer>        layer schema
//	geosuggest:svc:<service>:layer:<layer>:<id>  one feature
func metaKey(service, layerName string) string { return keyPrefix + service + ":meta:" + layerName }

func metaPattern(service string) string { return keyPrefix + service + ":meta:*" }

func featureKey(service, layerName, id string) string {
	return keyPrefix + service + ":layer:" + layerName + ":" + id
}

func featurePattern(service, layerName string) string {
	return keyPrefix + service + ":layer:" + layerName + ":*"
}

// validName rejects names that would corrupt the key layout or SCAN patterns.
func validName(s string) bool {
	return s != "" && !strings.ContainsAny(s, ":*?[]\\")
}

type layerMeta struct {
	Name   string
	Title  string
	Table  string
	Fields []string
}

func buildMetaFields(m layerMeta) (map[string]string, error) {
	fields, err := json.Marshal(m.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return map[string]string{
		metaName:   m.Name,
		metaTitle:  m.Title,
		metaTable:  m.Table,
		metaFields: string(fields),
	}, nil
}

func parseMetaFields(h map[string]string) (layerMeta, error) {
	m := layerMeta{Name: h[metaName], Title: h[metaTitle], Table: h[metaTable]}
	if m.Name == "" {
		return layerMeta{}, fmt.Errorf("meta without name")
	}
	if raw := h[metaFields]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Fields); err != nil {
			return layerMeta{}, fmt.Errorf("layer %s: parse fields: %w", m.Name, err)
		}
	}
	return m, nil
}

// buildFeatureFields flattens a feature into a hash. Attribute names starting
// with "__" are reserved and dropped.
func buildFeatureFields(f *feature.Feature) (map[string]string, error) {
	attrs := f.Attributes()
	h := make(map[string]string, len(attrs)+2)
	for k, v := range attrs {
		if strings.HasPrefix(k, "__") {
			continue
		}
		h[k] = v
	}
	h[fieldID] = f.ID()
	if f.HasGeometry() {
		g, err := json.Marshal(f.Geometry())
		if err != nil {
			return nil, fmt.Errorf("marshal geometry %s: %w", f.ID(), err)
		}
		h[fieldGeometry] = string(g)
	}
	return h, nil
}

func parseFeatureFields(h map[string]string) (*feature.Feature, error) {
	id := h[fieldID]
	if id == "" {
		return nil, fmt.Errorf("feature without id")
	}
	attrs := make(map[string]string, len(h))
	var g *geo.Geometry
	for k, v := range h {
		switch k {
		case fieldID:
		case fieldGeometry:
			g = &geo.Geometry{}
			if err := json.Unmarshal([]byte(v), g); err != nil {
				return nil, fmt.Errorf("feature %s: parse geometry: %w", id, err)
			}
		default:
			attrs[k] = v
		}
	}
	return feature.New(id, attrs, g), nil
}
