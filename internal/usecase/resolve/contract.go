package resolve

import "github.com/kailas-cloud/geosuggest/internal/domain/layer"

// Strategy names the rule that matched a logical layer name.
type Strategy string

// Strategy constants, in evaluation order.
const (
	Exact        Strategy = "exact"
	CatalogTitle Strategy = "catalog_title"
	TableName    Strategy = "table_name"
	Alias        Strategy = "alias"
	Fuzzy        Strategy = "fuzzy"
)

// Resolution is a resolved runtime layer.
type Resolution struct {
	Source   layer.Source
	Strategy Strategy
	// Path is the chain of group names above the source.
	Path []string
}

// Outcome pairs a config with its resolution attempt.
type Outcome struct {
	Config     layer.Config
	Resolution Resolution
	Err        error
}
