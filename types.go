package geosuggest

import (
	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	"github.com/kailas-cloud/geosuggest/internal/repository/memory"
	queryuc "github.com/kailas-cloud/geosuggest/internal/usecase/query"
	"github.com/kailas-cloud/geosuggest/internal/usecase/resolve"
)

// Mode selects which domain a search box queries.
type Mode = mode.Mode

// Mode constants.
const (
	ModeAsset    = mode.Asset
	ModeLocation = mode.Location
)

type (
	// LayerConfig describes one searchable logical layer.
	LayerConfig = layer.Config
	// Map is the layer tree and viewport the engine searches.
	Map = layer.Map
	// Node is a layer or group in a map's layer tree.
	Node = layer.Node
	// Source is a queryable feature collection.
	Source = layer.Source
	// Suggestion is a candidate completion.
	Suggestion = result.Suggestion
	// Item is a resolved search hit.
	Item = result.Item
	// Selection is the resolved target of a picked suggestion.
	Selection = queryuc.Selection
	// Statistics summarizes the index and warm-up state.
	Statistics = queryuc.Statistics
	// Snapshot is the warm-up state.
	Snapshot = replica.Snapshot
	// ProgressEvent is a warm-up progress notification.
	ProgressEvent = replica.ProgressEvent
	// Session is a debounced per-search-box query session.
	Session = queryuc.Session
	// Update is delivered to a Session sink when its suggestion list changes.
	Update = queryuc.Update
	// Outcome is a layer resolution diagnostic.
	Outcome = resolve.Outcome
	// Extent is a WGS84 bounding rectangle.
	Extent = geo.Extent
)

// Warm-up state constants.
const (
	StateUninitialized   = replica.Uninitialized
	StateWarming         = replica.Warming
	StateReady           = replica.Ready
	StateReadyWithErrors = replica.ReadyWithErrors
)

// NewLayerConfig validates and creates a layer configuration.
func NewLayerConfig(logicalName string, searchFields []string, displayField string, enabled bool) (LayerConfig, error) {
	return layer.NewConfig(logicalName, searchFields, displayField, enabled) //nolint:wrapcheck // domain error is already descriptive
}

// NewExtent creates an extent from min/max longitude and latitude.
func NewExtent(xmin, ymin, xmax, ymax float64) (Extent, error) {
	return geo.NewExtent(xmin, ymin, xmax, ymax) //nolint:wrapcheck // domain error is already descriptive
}

// In-memory layer building blocks for embedding the engine without a backend.
type (
	// Feature is one map feature: attributes and an optional geometry.
	Feature = feature.Feature
	// Geometry is a feature shape.
	Geometry = geo.Geometry
	// Point is a WGS84 position.
	Point = geo.Point
	// StaticMap is a Map with a fixed layer tree and a settable viewport.
	StaticMap = layer.StaticMap
	// MemoryLayer is a Source holding its features in memory.
	MemoryLayer = memory.Source
)

// NewFeature creates a feature. geometry may be nil.
func NewFeature(id string, attributes map[string]string, geometry *Geometry) *Feature {
	return feature.New(id, attributes, geometry)
}

// NewMemoryLayer creates an empty in-memory layer with the given attribute schema.
func NewMemoryLayer(name string, fields ...string) *MemoryLayer {
	return memory.NewSource(name, "", "", fields)
}

// NewGroup nests layers under a named group, like a map service.
func NewGroup(name string, children ...Node) Node {
	return layer.NewGroup(name, children...)
}

// NewStaticMap creates a map over the given layers and groups.
func NewStaticMap(extent Extent, nodes ...Node) *StaticMap {
	return layer.NewStaticMap(extent, nodes...)
}
