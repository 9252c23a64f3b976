package hosted

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/db"
	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/repository/memory"
)

var _ layer.Source = (*Source)(nil)

// Source is one hosted layer. Queries scan its feature keys in key order and filter client-side.
type Source struct {
	repo    *Repo
	service string
	meta    layerMeta
}

// Name returns the layer name.
func (s *Source) Name() string { return s.meta.Name }

// CatalogTitle returns the catalog title.
func (s *Source) CatalogTitle() string { return s.meta.Title }

// TableName returns the storage table name.
func (s *Source) TableName() string { return s.meta.Table }

// Fields returns the attribute schema.
func (s *Source) Fields() []string { return slices.Clone(s.meta.Fields) }

// Service returns the owning service name.
func (s *Source) Service() string { return s.service }

// Query filters hosted features by field value and returns one page.
func (s *Source) Query(ctx context.Context, q layer.Query) (layer.Page, error) {
	keys, err := db.Keys(ctx, s.repo.store, featurePattern(s.service, s.meta.Name))
	if err != nil {
		return layer.Page{}, s.unavailable(err)
	}

	skip := q.Offset
	var out []*feature.Feature
	for chunk := range slices.Chunk(keys, s.repo.batchSize) {
		if err := ctx.Err(); err != nil {
			return layer.Page{}, err
		}
		hashes, err := s.repo.store.GetHashes(ctx, chunk)
		if err != nil {
			return layer.Page{}, s.unavailable(err)
		}
		for _, h := range hashes {
			f, err := parseFeatureFields(h.Fields)
			if err != nil {
				s.repo.logger.Warn("Skipping malformed feature", zap.String("key", h.Key), zap.Error(err))
				continue
			}
			if !memory.Matches(f, q) {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			if q.Limit > 0 && len(out) == q.Limit {
				return layer.Page{Features: out, More: true}, nil
			}
			out = append(out, memory.Project(f, q))
		}
	}
	return layer.Page{Features: out}, nil
}

func (s *Source) unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Classify(err)
	}
	return fmt.Errorf("%w: %s/%s: %w", domain.ErrDataSourceUnavailable, s.service, s.meta.Name, err)
}
