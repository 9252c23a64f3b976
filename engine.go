package geosuggest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/index"
	"github.com/kailas-cloud/geosuggest/internal/metrics"
	"github.com/kailas-cloud/geosuggest/internal/repository/suggestcache"
	lazyuc "github.com/kailas-cloud/geosuggest/internal/usecase/lazyload"
	queryuc "github.com/kailas-cloud/geosuggest/internal/usecase/query"
	replicauc "github.com/kailas-cloud/geosuggest/internal/usecase/replica"
	"github.com/kailas-cloud/geosuggest/internal/usecase/resolve"
)

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("geosuggest: engine closed")

const progressBuffer = 32

// Engine is the geosuggest entry point: it owns the index, the replica
// builder, the lazy loader and the suggestion cache for one map.
type Engine struct {
	layers   layer.Map
	configs  []layer.Config
	idx      *index.Index
	resolver *resolve.Service
	replica  *replicauc.Service
	query    *queryuc.Service
	cache    *suggestcache.Cache
	progress *replica.Broadcaster
	cfg      *engineConfig
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
	warms  map[*context.CancelFunc]struct{}
}

// New creates an Engine over the map's layer tree and the layer configs.
// The configs must contain at least one entry; disabled layers are kept but never searched.
func New(m Map, configs []LayerConfig, opts ...Option) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: map is required", ErrInvalidConfig)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: at least one layer config is required", ErrInvalidConfig)
	}

	cfg := &engineConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	idx := index.New()
	resolver := resolve.New(cfg.logger.Named("resolve"))
	rep := replicauc.New(idx, resolver, m, replicauc.Options{
		PageSize:    cfg.pageSize,
		PageTimeout: cfg.pageTimeout,
	}, cfg.logger.Named("replica"))
	lazy := lazyuc.New(idx, resolver, m, configs, lazyuc.Options{
		Concurrency:   cfg.concurrency,
		LimitPerField: cfg.limitPerField,
		QueryTimeout:  cfg.queryTimeout,
	}, cfg.logger.Named("lazyload"))
	cache := suggestcache.New(cfg.cacheSize, metrics.SuggestionCacheTotal)
	qs := queryuc.New(idx, lazy, cfg.geocoder, cache, m, configs, rep, queryuc.Options{
		MaxSuggestions: cfg.maxSuggestions,
		MaxResults:     cfg.maxResults,
		Country:        cfg.country,
	}, cfg.logger.Named("query"))

	return &Engine{
		layers:   m,
		configs:  configs,
		idx:      idx,
		resolver: resolver,
		replica:  rep,
		query:    qs,
		cache:    cache,
		progress: replica.NewBroadcaster(progressBuffer),
		cfg:      cfg,
		logger:   cfg.logger,
		warms:    make(map[*context.CancelFunc]struct{}),
	}, nil
}

// Warm builds the attribute replica and blocks until every enabled layer has
// been loaded or has failed. Progress is published to Subscribe channels.
// Cached asset suggestions are dropped once the new replica is in place.
func (e *Engine) Warm(ctx context.Context) Snapshot {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.replica.Snapshot()
	}
	e.warms[&cancel] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.warms, &cancel)
		e.mu.Unlock()
	}()

	e.progress.Reset()
	snap := e.replica.Warm(ctx, e.configs, e.progress.Publish)
	if snap.State.IsTerminal() {
		e.cache.Purge(mode.Asset)
	}
	return snap
}

// Ready reports whether warm-up has finished, with or without errors.
func (e *Engine) Ready() bool {
	return e.replica.Snapshot().State.IsTerminal()
}

// Snapshot returns the current warm-up state.
func (e *Engine) Snapshot() Snapshot {
	return e.replica.Snapshot()
}

// Subscribe streams warm-up progress. The most recent event is delivered first.
// Call the returned func to unsubscribe.
func (e *Engine) Subscribe() (<-chan ProgressEvent, func()) {
	return e.progress.Subscribe()
}

// Suggest returns up to the configured number of suggestions for text.
func (e *Engine) Suggest(ctx context.Context, m Mode, text string) ([]Suggestion, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	return e.query.Suggest(ctx, m, text) //nolint:wrapcheck // query errors carry domain sentinels
}

// Search resolves text to the best matching feature.
func (e *Engine) Search(ctx context.Context, text string) (Item, error) {
	if e.isClosed() {
		return Item{}, ErrClosed
	}
	return e.query.Search(ctx, text) //nolint:wrapcheck // query errors carry domain sentinels
}

// Select resolves a picked suggestion to its feature or geocoded place.
func (e *Engine) Select(ctx context.Context, s Suggestion) (Selection, error) {
	if e.isClosed() {
		return Selection{}, ErrClosed
	}
	return e.query.Select(ctx, s) //nolint:wrapcheck // query errors carry domain sentinels
}

// Statistics summarizes the index and warm-up state.
func (e *Engine) Statistics() Statistics {
	return e.query.Statistics()
}

// Layers reports how each configured layer resolves against the current tree.
func (e *Engine) Layers() []Outcome {
	return e.resolver.ResolveAll(e.configs, e.layers.Layers())
}

// NewSession starts a debounced query session for one search box.
// sink receives every list change and must not block for long.
func (e *Engine) NewSession(m Mode, sink func(Update)) *Session {
	return queryuc.NewSession(e.query, m, queryuc.SessionOptions{
		Debounce: e.cfg.debounce,
		Timeout:  e.cfg.queryTimeout,
		MinChars: e.cfg.minChars,
	}, sink, e.logger.Named("session"))
}

// Close cancels running warm-ups. Further queries return ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for cancel := range e.warms {
		(*cancel)()
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
