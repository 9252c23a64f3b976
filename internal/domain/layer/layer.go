package layer

import (
	"context"

	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
)

// Node is any entry in a map's layer tree.
type Node interface {
	Name() string
}

// Group is a container of nested nodes.
type Group interface {
	Node
	Children() []Node
}

// Match selects how a Query compares field values.
type Match int

// Match constants.
const (
	// Contains matches values containing the query text, case-insensitively.
	Contains Match = iota
	// Exact matches values equal to the query text, case-insensitively.
	Exact
)

func (m Match) String() string {
	if m == Exact {
		return "exact"
	}
	return "contains"
}

// Query is a field-scoped attribute query. An empty Value selects every record.
type Query struct {
	Field          string
	Value          string
	Match          Match
	ReturnGeometry bool
	// OutFields limits returned attributes. Empty means all.
	OutFields []string
	Offset    int
	Limit     int
}

// Page is one slice of query results. More reports that further pages exist.
type Page struct {
	Features []*feature.Feature
	More     bool
}

// Source is a queryable feature collection, service-backed or packaged.
type Source interface {
	Node
	// CatalogTitle is the display title of the hosting catalog item, if any.
	CatalogTitle() string
	// TableName is the underlying storage table, if any.
	TableName() string
	// Fields lists the attribute schema.
	Fields() []string
	Query(ctx context.Context, q Query) (Page, error)
}

// Map is the viewport handle: a layer tree and the visible extent.
type Map interface {
	Layers() []Node
	VisibleExtent() geo.Extent
}
