package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
)

// Source is an in-process feature collection.
type Source struct {
	name   string
	title  string
	table  string
	fields []string

	mu       sync.RWMutex
	features []*feature.Feature
}

// NewSource creates an empty source. title and table may be empty.
func NewSource(name, title, table string, fields []string) *Source {
	return &Source{name: name, title: title, table: table, fields: fields}
}

// Name returns the layer name.
func (s *Source) Name() string { return s.name }

// CatalogTitle returns the catalog title.
func (s *Source) CatalogTitle() string { return s.title }

// TableName returns the storage table name.
func (s *Source) TableName() string { return s.table }

// Fields returns the attribute schema.
func (s *Source) Fields() []string { return s.fields }

// Add appends features.
func (s *Source) Add(fs ...*feature.Feature) {
	s.mu.Lock()
	s.features = append(s.features, fs...)
	s.mu.Unlock()
}

// Len returns the number of features.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// Query filters features by field value and returns one page.
func (s *Source) Query(ctx context.Context, q layer.Query) (layer.Page, error) {
	if err := ctx.Err(); err != nil {
		return layer.Page{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*feature.Feature
	for _, f := range s.features {
		if Matches(f, q) {
			matched = append(matched, f)
		}
	}

	if q.Offset >= len(matched) {
		return layer.Page{}, nil
	}
	matched = matched[q.Offset:]
	more := false
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
		more = true
	}

	out := make([]*feature.Feature, len(matched))
	for i, f := range matched {
		out[i] = Project(f, q)
	}
	return layer.Page{Features: out, More: more}, nil
}

// Matches reports whether f satisfies the query's field filter.
func Matches(f *feature.Feature, q layer.Query) bool {
	if q.Value == "" {
		return true
	}
	v, ok := f.Value(q.Field)
	if !ok {
		return false
	}
	v, want := strings.ToLower(v), strings.ToLower(q.Value)
	if q.Match == layer.Exact {
		return v == want
	}
	return strings.Contains(v, want)
}

// Project applies OutFields and ReturnGeometry to f.
func Project(f *feature.Feature, q layer.Query) *feature.Feature {
	attrs := f.Attributes()
	if len(q.OutFields) > 0 {
		attrs = make(map[string]string, len(q.OutFields))
		for _, name := range q.OutFields {
			if v, ok := f.Value(name); ok {
				attrs[name] = v
			}
		}
	}
	if !q.ReturnGeometry {
		return feature.New(f.ID(), attrs, nil)
	}
	return feature.New(f.ID(), attrs, f.Geometry())
}

var _ layer.Source = (*Source)(nil)
