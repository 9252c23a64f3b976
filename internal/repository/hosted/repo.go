package hosted

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/db"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/repository/memory"
)

// DefaultBatchSize bounds keys per pipelined HGETALL round-trip.
const DefaultBatchSize = 256

// store is the consumer interface for hosted layers (ISP).
type store interface {
	PutHashes(ctx context.Context, hashes []db.Hash) error
	GetHashes(ctx context.Context, keys []string) ([]db.Hash, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	ScanPages(ctx context.Context, pattern string, fn func(keys []string) error) error
}

// Repo discovers and seeds layers stored as Redis hashes.
type Repo struct {
	store     store
	batchSize int
	logger    *zap.Logger
}

// New creates a hosted layer repository. batchSize <= 0 uses DefaultBatchSize.
func New(s store, batchSize int, logger *zap.Logger) *Repo {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, batchSize: batchSize, logger: logger}
}

// LoadTree builds one group per service holding its hosted layers, sorted by name.
// A service with no layers yields an empty group.
func (r *Repo) LoadTree(ctx context.Context, services []string) ([]layer.Node, error) {
	nodes := make([]layer.Node, 0, len(services))
	for _, svc := range services {
		if !validName(svc) {
			return nil, fmt.Errorf("invalid service name %q", svc)
		}
		keys, err := db.Keys(ctx, r.store, metaPattern(svc))
		if err != nil {
			return nil, fmt.Errorf("scan service %s: %w", svc, err)
		}

		metas, err := r.store.GetHashes(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("load service %s: %w", svc, err)
		}

		children := make([]layer.Node, 0, len(metas))
		for _, h := range metas {
			m, err := parseMetaFields(h.Fields)
			if err != nil {
				r.logger.Warn("Skipping malformed layer", zap.String("key", h.Key), zap.Error(err))
				continue
			}
			children = append(children, &Source{repo: r, service: svc, meta: m})
		}
		r.logger.Info("Loaded hosted service", zap.String("service", svc), zap.Int("layers", len(children)))
		nodes = append(nodes, layer.NewGroup(svc, children...))
	}
	return nodes, nil
}

// Seed writes every layer of ds, replacing the features of layers that already exist.
func (r *Repo) Seed(ctx context.Context, ds memory.Dataset) (int, error) {
	total := 0
	for _, svc := range ds.Services {
		if !validName(svc.Name) {
			return total, fmt.Errorf("invalid service name %q", svc.Name)
		}
		for _, l := range svc.Layers {
			n, err := r.seedLayer(ctx, svc.Name, l)
			if err != nil {
				return total, fmt.Errorf("seed %s/%s: %w", svc.Name, l.Name, err)
			}
			total += n
		}
	}
	return total, nil
}

func (r *Repo) seedLayer(ctx context.Context, svc string, l memory.LayerData) (int, error) {
	if !validName(l.Name) {
		return 0, fmt.Errorf("invalid layer name %q", l.Name)
	}

	// Deleting keys SCAN already returned does not disturb the cursor.
	var removed int64
	err := r.store.ScanPages(ctx, featurePattern(svc, l.Name), func(keys []string) error {
		for chunk := range slices.Chunk(keys, r.batchSize) {
			n, err := r.store.Delete(ctx, chunk...)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete stale features: %w", err)
	}

	meta, err := buildMetaFields(layerMeta{Name: l.Name, Title: l.Title, Table: l.Table, Fields: l.Fields})
	if err != nil {
		return 0, err
	}
	items := make([]db.Hash, 0, len(l.Features)+1)
	items = append(items, db.Hash{Key: metaKey(svc, l.Name), Fields: meta})
	for _, fd := range l.Features {
		if fd.ID == "" {
			return 0, fmt.Errorf("feature without id")
		}
		h, err := buildFeatureFields(fd.ToFeature())
		if err != nil {
			return 0, err
		}
		items = append(items, db.Hash{Key: featureKey(svc, l.Name, fd.ID), Fields: h})
	}

	for chunk := range slices.Chunk(items, r.batchSize) {
		if err := r.store.PutHashes(ctx, chunk); err != nil {
			return 0, err
		}
	}
	r.logger.Debug("Seeded layer",
		zap.String("service", svc), zap.String("layer", l.Name),
		zap.Int("features", len(l.Features)), zap.Int64("replaced", removed))
	return len(l.Features), nil
}
