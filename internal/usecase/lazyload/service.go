package lazyload

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/hint"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	"github.com/kailas-cloud/geosuggest/internal/index"
	"github.com/kailas-cloud/geosuggest/internal/metrics"
)

// Defaults for Options.
const (
	DefaultConcurrency   = 8
	DefaultLimitPerField = 50
	DefaultQueryTimeout  = 3 * time.Second
)

// Options tunes the live fan-out.
type Options struct {
	Concurrency   int
	LimitPerField int
	QueryTimeout  time.Duration
}

// Service answers index misses with live field-scoped queries and back-fills the index.
type Service struct {
	idx      Index
	resolver Resolver
	layers   layer.Map
	configs  []layer.Config
	opts     Options
	logger   *zap.Logger

	group singleflight.Group
}

// New creates a lazy loader over the enabled configs.
func New(
	idx Index, resolver Resolver, layers layer.Map,
	configs []layer.Config, opts Options, logger *zap.Logger,
) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.LimitPerField <= 0 {
		opts.LimitPerField = DefaultLimitPerField
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		idx:      idx,
		resolver: resolver,
		layers:   layers,
		configs:  layer.Enabled(configs),
		opts:     opts,
		logger:   logger,
	}
}

// LoadAndCache runs a live contains query for text across every enabled layer and search field.
func (s *Service) LoadAndCache(ctx context.Context, text string) ([]result.Item, error) {
	return s.Load(ctx, hint.Hint{Value: text})
}

// Load is LoadAndCache restricted to the hint's scope. Identical concurrent
// calls share one live pass. A caller whose ctx ends stops waiting; the shared
// pass runs to completion and still back-fills the index.
func (s *Service) Load(ctx context.Context, h hint.Hint) ([]result.Item, error) {
	q := index.Normalize(h.Value)
	if q == "" {
		return nil, nil
	}
	key := strings.Join([]string{layer.Contains.String(), h.Layer, h.Field, q}, "\x00")

	ch := s.group.DoChan(key, func() (any, error) {
		// The pass outlives any single waiter.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.passTimeout())
		defer cancel()
		return s.pass(pctx, h, layer.Contains)
	})

	select {
	case <-ctx.Done():
		return nil, domain.Classify(ctx.Err())
	case r := <-ch:
		if r.Shared {
			metrics.LazyLoadTotal.WithLabelValues("shared").Inc()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return slices.Clone(r.Val.([]result.Item)), nil
	}
}

// Find runs a targeted exact lookup of value in one layer and field, with geometry.
func (s *Service) Find(ctx context.Context, layerName, field, value string) ([]result.Item, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return s.pass(ctx, hint.Hint{Layer: layerName, Field: field, Value: value}, layer.Exact)
}

func (s *Service) passTimeout() time.Duration {
	// Enough for every wave of the bounded fan-out.
	waves := (s.taskCount() + s.opts.Concurrency - 1) / s.opts.Concurrency
	return time.Duration(max(1, waves)) * s.opts.QueryTimeout
}

func (s *Service) taskCount() int {
	n := 0
	for _, c := range s.configs {
		n += len(c.SearchFields())
	}
	return n
}

type task struct {
	cfg   layer.Config
	src   layer.Source
	field string
}

type hit struct {
	item   result.Item
	match  index.Match
	record index.Record
}

func (s *Service) pass(ctx context.Context, h hint.Hint, match layer.Match) ([]result.Item, error) {
	q := index.Normalize(h.Value)
	tasks := s.plan(h)
	if len(tasks) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		hits   []hit
		failed int
	)

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			found, err := s.query(ctx, t, h.Value, q, match)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return nil
			}
			hits = append(hits, found...)
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(tasks) {
		metrics.LazyLoadTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: all %d live queries failed", domain.ErrDataSourceUnavailable, failed)
	}

	records := make([]index.Record, len(hits))
	for i, ht := range hits {
		records[i] = ht.record
	}
	s.idx.UpsertBatch(records)
	metrics.IndexEntries.Set(float64(s.idx.Statistics().TotalEntries))

	slices.SortFunc(hits, func(a, b hit) int {
		if c := index.Compare(a.match, b.match); c != 0 {
			return c
		}
		return strings.Compare(a.item.FeatureID, b.item.FeatureID)
	})
	hits = index.Dedup(hits, func(ht hit) string { return ht.item.DisplayText }, 0)

	items := make([]result.Item, len(hits))
	for i, ht := range hits {
		items[i] = ht.item
	}

	if len(items) == 0 {
		metrics.LazyLoadTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.LazyLoadTotal.WithLabelValues("hit").Inc()
	}
	s.logger.Debug("Lazy load finished",
		zap.String("query", h.Value),
		zap.Int("tasks", len(tasks)),
		zap.Int("failed", failed),
		zap.Int("hits", len(items)),
	)
	return items, nil
}

// plan resolves in-scope layers into per-field tasks. Unresolved layers are logged and skipped.
func (s *Service) plan(h hint.Hint) []task {
	tree := s.layers.Layers()
	var tasks []task
	for _, cfg := range s.configs {
		if h.Layer != "" && !strings.EqualFold(h.Layer, cfg.LogicalName()) {
			continue
		}
		if h.Field != "" && !cfg.HasField(h.Field) && !strings.EqualFold(cfg.DisplayField(), h.Field) {
			continue
		}
		res, err := s.resolver.Resolve(cfg.LogicalName(), tree)
		if err != nil {
			s.logger.Warn("Layer not resolved, skipping live query",
				zap.String("layer", cfg.LogicalName()), zap.Error(err))
			continue
		}
		fields := cfg.SearchFields()
		if h.Field != "" {
			fields = []string{h.Field}
		}
		for _, f := range fields {
			tasks = append(tasks, task{cfg: cfg, src: res.Source, field: f})
		}
	}
	return tasks
}

func (s *Service) query(ctx context.Context, t task, raw, q string, match layer.Match) ([]hit, error) {
	qctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	page, err := t.src.Query(qctx, layer.Query{
		Field:          t.field,
		Value:          strings.TrimSpace(raw),
		Match:          match,
		ReturnGeometry: true,
		Limit:          s.opts.LimitPerField,
	})
	if err != nil {
		err = domain.Classify(err)
		metrics.LiveQueryErrorsTotal.WithLabelValues(metrics.ErrorType(
			errors.Is(err, domain.ErrQueryTimeout),
			errors.Is(err, domain.ErrDataSourceUnavailable),
		)).Inc()
		s.logger.Warn("Live query failed, skipping",
			zap.String("layer", t.cfg.LogicalName()),
			zap.String("field", t.field),
			zap.Error(err),
		)
		return nil, domain.NewLayerError(t.cfg.LogicalName(), t.field, err)
	}

	out := make([]hit, 0, len(page.Features))
	for _, f := range page.Features {
		v, ok := f.Value(t.field)
		if !ok {
			continue
		}
		m, ok := index.Score(index.Normalize(v), v, q)
		if !ok || (match == layer.Exact && !m.Exact) {
			continue
		}
		out = append(out, hit{
			item: result.Item{
				Layer:       t.cfg.LogicalName(),
				Field:       t.field,
				FeatureID:   f.ID(),
				DisplayText: v,
				Feature:     f,
			},
			match: m,
			record: index.Record{
				Layer:     t.cfg.LogicalName(),
				Field:     t.field,
				Value:     v,
				Display:   v,
				FeatureID: f.ID(),
				Feature:   f,
			},
		})
	}
	return out, nil
}
