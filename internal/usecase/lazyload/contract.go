package lazyload

import (
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/index"
	"github.com/kailas-cloud/geosuggest/internal/usecase/resolve"
)

// Index receives back-filled hits.
type Index interface {
	UpsertBatch(rs []index.Record)
	Statistics() index.Statistics
}

// Resolver maps logical layer names onto runtime sources.
type Resolver interface {
	Resolve(logicalName string, tree []layer.Node) (resolve.Resolution, error)
}
