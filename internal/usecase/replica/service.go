package replica

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	domreplica "github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/index"
	"github.com/kailas-cloud/geosuggest/internal/metrics"
)

// Defaults for Options.
const (
	DefaultPageSize    = 1000
	DefaultPageTimeout = 30 * time.Second
)

// Options tunes paging.
type Options struct {
	PageSize    int
	PageTimeout time.Duration
}

// Service builds the attribute replica: it pages through every enabled layer
// and upserts each record's indexed fields into the index.
type Service struct {
	idx      Index
	resolver Resolver
	layers   layer.Map
	opts     Options
	logger   *zap.Logger

	mu   sync.Mutex
	snap domreplica.Snapshot
}

// New creates a replica builder.
func New(idx Index, resolver Resolver, layers layer.Map, opts Options, logger *zap.Logger) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultPageTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		idx:      idx,
		resolver: resolver,
		layers:   layers,
		opts:     opts,
		logger:   logger,
		snap:     domreplica.Snapshot{State: domreplica.Uninitialized},
	}
}

// Snapshot returns the current replica state.
func (s *Service) Snapshot() domreplica.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Warm runs one warm-up pass over the enabled configs. A call made while a pass
// is already running returns the current snapshot without doing anything.
// Layer failures are recorded and skipped; sink may be nil.
func (s *Service) Warm(ctx context.Context, configs []layer.Config, sink domreplica.ProgressSink) domreplica.Snapshot {
	s.mu.Lock()
	if s.snap.State == domreplica.Warming {
		snap := s.snap.Clone()
		s.mu.Unlock()
		s.logger.Debug("Warm-up already running, ignoring request")
		return snap
	}
	enabled := layer.Enabled(configs)
	s.snap = domreplica.Snapshot{
		State:  domreplica.Warming,
		Layers: make([]domreplica.LayerStatus, 0, len(enabled)),
	}
	s.mu.Unlock()

	if sink == nil {
		sink = func(domreplica.ProgressEvent) {}
	}

	start := time.Now()
	total := len(enabled)
	tree := s.layers.Layers()

	s.logger.Info("Warm-up started", zap.Int("layers", total))

	for i, cfg := range enabled {
		sink(domreplica.ProgressEvent{
			LayerIndex: i,
			LayerCount: total,
			Message:    "Loading " + cfg.LogicalName(),
			Percent:    percent(i, total),
		})

		st := s.warmLayer(ctx, cfg, tree)

		s.mu.Lock()
		s.snap.Layers = append(s.snap.Layers, st)
		if st.OK {
			s.snap.Succeeded++
		} else {
			s.snap.Failed++
		}
		s.snap.Percent = percent(i+1, total)
		s.mu.Unlock()

		msg := fmt.Sprintf("Loaded %s (%d records)", cfg.LogicalName(), st.Records)
		if !st.OK {
			msg = fmt.Sprintf("Failed %s: %s", cfg.LogicalName(), st.Error)
		}
		sink(domreplica.ProgressEvent{
			LayerIndex: i,
			LayerCount: total,
			Message:    msg,
			Percent:    percent(i+1, total),
		})
	}

	stats := s.idx.Statistics()
	metrics.IndexEntries.Set(float64(stats.TotalEntries))
	metrics.WarmupDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.snap.Percent = 100
	s.snap.State = domreplica.Ready
	if s.snap.Failed > 0 {
		s.snap.State = domreplica.ReadyWithErrors
	}
	final := s.snap.Clone()
	s.mu.Unlock()

	s.logger.Info("Warm-up finished",
		zap.String("state", string(final.State)),
		zap.Int("succeeded", final.Succeeded),
		zap.Int("failed", final.Failed),
		zap.Int("entries", stats.TotalEntries),
		zap.Duration("duration", time.Since(start)),
	)
	sink(domreplica.ProgressEvent{
		LayerIndex: total,
		LayerCount: total,
		Message:    fmt.Sprintf("Warm-up finished: %d ok, %d failed", final.Succeeded, final.Failed),
		Percent:    100,
		Done:       true,
	})

	return final
}

func (s *Service) warmLayer(ctx context.Context, cfg layer.Config, tree []layer.Node) domreplica.LayerStatus {
	st := domreplica.LayerStatus{Layer: cfg.LogicalName()}
	log := s.logger.With(zap.String("layer", cfg.LogicalName()))

	if err := ctx.Err(); err != nil {
		return s.fail(st, domain.Classify(err), log)
	}

	res, err := s.resolver.Resolve(cfg.LogicalName(), tree)
	if err != nil {
		return s.fail(st, err, log)
	}
	st.Resolved = res.Source.Name()
	st.Strategy = string(res.Strategy)

	fields := validateFields(cfg, res.Source, log)
	if len(fields) == 0 {
		return s.fail(st, domain.NewLayerError(cfg.LogicalName(), "", domain.ErrFieldNotFound), log)
	}

	for offset := 0; ; offset += s.opts.PageSize {
		page, err := s.fetchPage(ctx, res.Source, fields, offset)
		if err != nil {
			return s.fail(st, domain.NewLayerError(cfg.LogicalName(), "", err), log)
		}
		s.idx.UpsertBatch(records(cfg.LogicalName(), fields, page.Features))
		st.Records += len(page.Features)
		if !page.More || len(page.Features) == 0 {
			break
		}
	}

	st.OK = true
	metrics.WarmupLayersTotal.WithLabelValues("ok").Inc()
	log.Info("Layer warmed",
		zap.String("resolved", st.Resolved),
		zap.String("strategy", st.Strategy),
		zap.Int("records", st.Records),
	)
	return st
}

func (s *Service) fetchPage(ctx context.Context, src layer.Source, fields []boundField, offset int) (layer.Page, error) {
	pctx, cancel := context.WithTimeout(ctx, s.opts.PageTimeout)
	defer cancel()

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	page, err := src.Query(pctx, layer.Query{
		OutFields: cols,
		Offset:    offset,
		Limit:     s.opts.PageSize,
	})
	if err != nil {
		return layer.Page{}, fmt.Errorf("query page at offset %d: %w", offset, domain.Classify(err))
	}
	return page, nil
}

func (s *Service) fail(st domreplica.LayerStatus, err error, log *zap.Logger) domreplica.LayerStatus {
	st.OK = false
	switch {
	case errors.Is(err, domain.ErrLayerNotFound):
		st.Error = "layer not found"
	case errors.Is(err, domain.ErrFieldNotFound):
		st.Error = "no valid fields"
	case errors.Is(err, domain.ErrQueryTimeout):
		st.Error = "query timeout"
	case errors.Is(err, domain.ErrQueryCancelled):
		st.Error = "cancelled"
	default:
		st.Error = "data source unavailable"
	}
	metrics.WarmupLayersTotal.WithLabelValues("failed").Inc()
	log.Warn("Layer warm-up failed, skipping", zap.Error(err))
	return st
}

// boundField is a configured field paired with its schema column.
type boundField struct {
	name   string
	column string
}

// validateFields maps the layer's indexed fields onto the source schema.
// Missing fields are logged and dropped. An empty schema accepts every field.
func validateFields(cfg layer.Config, src layer.Source, log *zap.Logger) []boundField {
	want := cfg.IndexedFields()
	schema := src.Fields()

	out := make([]boundField, 0, len(want))
	for _, f := range want {
		if len(schema) == 0 {
			out = append(out, boundField{name: f, column: f})
			continue
		}
		col, ok := lookupField(schema, f)
		if !ok {
			log.Warn("Configured field not in layer schema, skipping",
				zap.String("field", f),
				zap.Error(domain.ErrFieldNotFound),
			)
			continue
		}
		out = append(out, boundField{name: f, column: col})
	}
	return out
}

func lookupField(schema []string, name string) (string, bool) {
	for _, s := range schema {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

func records(layerName string, fields []boundField, features []*feature.Feature) []index.Record {
	out := make([]index.Record, 0, len(features)*len(fields))
	for _, f := range features {
		for _, field := range fields {
			v, ok := f.Value(field.column)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			out = append(out, index.Record{
				Layer:     layerName,
				Field:     field.name,
				Value:     v,
				Display:   v,
				FeatureID: f.ID(),
			})
		}
	}
	return out
}

func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}
