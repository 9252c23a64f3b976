package query

import (
	"context"

	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/hint"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	"github.com/kailas-cloud/geosuggest/internal/index"
	"github.com/kailas-cloud/geosuggest/internal/repository/suggestcache"
)

// Index is the warmed attribute index.
type Index interface {
	SearchFunc(query string, maxResults int, keep func(*index.Entry) bool) []*index.Entry
	Statistics() index.Statistics
}

// LazyLoader answers index misses with live queries.
type LazyLoader interface {
	Load(ctx context.Context, h hint.Hint) ([]result.Item, error)
	Find(ctx context.Context, layerName, field, value string) ([]result.Item, error)
}

// Geocoder is the external location search collaborator.
type Geocoder interface {
	Suggest(ctx context.Context, text, country string, aoi geo.Extent) ([]geo.PlaceSuggestion, error)
	Geocode(ctx context.Context, s geo.PlaceSuggestion, country string, aoi geo.Extent) (geo.Place, error)
}

// Cache memoizes suggestion lists.
type Cache interface {
	Get(key suggestcache.Key) ([]result.Suggestion, bool)
	Put(key suggestcache.Key, suggestions []result.Suggestion)
}

// ReplicaReader exposes warm-up state.
type ReplicaReader interface {
	Snapshot() replica.Snapshot
}
