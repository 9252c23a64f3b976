package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
)

// Dataset is the JSON seed format: services of layers of features.
type Dataset struct {
	Services []ServiceData `json:"services"`
}

// ServiceData is a named group of layers.
type ServiceData struct {
	Name   string      `json:"name"`
	Layers []LayerData `json:"layers"`
}

// LayerData is one layer and its features.
type LayerData struct {
	Name     string        `json:"name"`
	Title    string        `json:"title,omitempty"`
	Table    string        `json:"table,omitempty"`
	Fields   []string      `json:"fields"`
	Features []FeatureData `json:"features"`
}

// FeatureData is one feature record.
type FeatureData struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes"`
	Geometry   *geo.Geometry     `json:"geometry,omitempty"`
}

// ToFeature converts the record.
func (d FeatureData) ToFeature() *feature.Feature {
	return feature.New(d.ID, d.Attributes, d.Geometry)
}

// DecodeDataset reads a JSON dataset.
func DecodeDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	for _, svc := range ds.Services {
		for _, l := range svc.Layers {
			if l.Name == "" {
				return Dataset{}, fmt.Errorf("service %q: layer without name", svc.Name)
			}
		}
	}
	return ds, nil
}

// Tree builds one group per service holding in-memory sources.
func (ds Dataset) Tree() []layer.Node {
	nodes := make([]layer.Node, 0, len(ds.Services))
	for _, svc := range ds.Services {
		children := make([]layer.Node, 0, len(svc.Layers))
		for _, l := range svc.Layers {
			src := NewSource(l.Name, l.Title, l.Table, l.Fields)
			for _, f := range l.Features {
				src.Add(f.ToFeature())
			}
			children = append(children, src)
		}
		nodes = append(nodes, layer.NewGroup(svc.Name, children...))
	}
	return nodes
}
